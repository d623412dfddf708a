package pain_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sanacare/go-care/internal/domain/pain"
	"github.com/sanacare/go-care/internal/domain/user"
	"github.com/sanacare/go-care/internal/i18n"
	"github.com/sanacare/go-care/internal/infrastructure/memory"
	"github.com/sanacare/go-care/internal/notify"
	"github.com/sanacare/go-care/pkg/clock"
)

var reportedAt = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type captureNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (c *captureNotifier) Send(_ context.Context, _ string, msg notify.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *captureNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type fixture struct {
	repo      *memory.EpisodeStore
	svc       *pain.Service
	escalator *pain.Escalator
	clock     *clock.Fake
	notifier  *captureNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := memory.NewEpisodeStore()
	users := memory.NewUserDirectory()
	users.Put(&user.User{ID: "user-1", DeviceToken: "tok-1", Language: i18n.LangFR})

	clk := clock.NewFake(reportedAt)
	notifier := &captureNotifier{}
	svc := pain.NewService(repo, nil, clk, nil)
	esc := pain.NewEscalator(repo, users, notifier, nil, pain.DefaultEscalatorConfig(), clk, nil)
	return &fixture{repo: repo, svc: svc, escalator: esc, clock: clk, notifier: notifier}
}

func (f *fixture) report(t *testing.T) *pain.Episode {
	t.Helper()
	ep, err := f.svc.Report(context.Background(), "user-1", pain.ReportInput{
		BodyPartName: "lower back",
		DeviceToken:  "tok-old",
	})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	return ep
}

func TestNeedsCheckFlagsAfterFiveHours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ep := f.report(t)

	// Just under the threshold: nothing happens.
	f.clock.Advance(5*time.Hour - time.Minute)
	if err := f.escalator.NeedsCheckPass(ctx); err != nil {
		t.Fatalf("pass: %v", err)
	}
	if f.notifier.count() != 0 {
		t.Fatalf("flagged too early")
	}

	f.clock.Advance(2 * time.Minute)
	if err := f.escalator.NeedsCheckPass(ctx); err != nil {
		t.Fatalf("pass: %v", err)
	}

	got, err := f.repo.FindByID(ctx, ep.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !got.NeedsPainCheck {
		t.Fatalf("episode not flagged")
	}
	if !got.IsActive {
		t.Fatalf("check flag must not deactivate the episode")
	}
	if f.notifier.count() != 1 {
		t.Fatalf("%d notifications, want 1", f.notifier.count())
	}

	// Flagged episodes are excluded; re-running must not notify again.
	if err := f.escalator.NeedsCheckPass(ctx); err != nil {
		t.Fatalf("pass: %v", err)
	}
	if f.notifier.count() != 1 {
		t.Fatalf("flagged episode notified twice")
	}
}

func TestOver24hDeactivates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ep := f.report(t)

	f.clock.Advance(24*time.Hour + time.Minute)
	if err := f.escalator.Over24hPass(ctx); err != nil {
		t.Fatalf("pass: %v", err)
	}

	got, err := f.repo.FindByID(ctx, ep.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.IsActive {
		t.Fatalf("episode still active past 24h")
	}
	if !got.WasOver24h {
		t.Fatalf("over-24h flag not set")
	}
	if got.EndTime == nil || !got.EndTime.Equal(f.clock.Now()) {
		t.Fatalf("end time not stamped: %v", got.EndTime)
	}
	if f.notifier.count() != 1 {
		t.Fatalf("%d notifications, want 1", f.notifier.count())
	}
}

func TestNagRepeatsWithoutMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ep := f.report(t)

	f.clock.Advance(25 * time.Hour)
	if err := f.escalator.Over24hPass(ctx); err != nil {
		t.Fatalf("escalate: %v", err)
	}
	base := f.notifier.count()

	for i := 0; i < 3; i++ {
		if err := f.escalator.NagPass(ctx); err != nil {
			t.Fatalf("nag: %v", err)
		}
	}
	if got := f.notifier.count() - base; got != 3 {
		t.Fatalf("%d nag notifications, want 3", got)
	}

	got, _ := f.repo.FindByID(ctx, ep.ID)
	if got.IsActive || !got.WasOver24h {
		t.Fatalf("nag mutated episode state: %+v", got)
	}
}

func TestResolveStillHurting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ep := f.report(t)

	f.clock.Advance(6 * time.Hour)
	if err := f.escalator.NeedsCheckPass(ctx); err != nil {
		t.Fatalf("pass: %v", err)
	}

	got, err := f.svc.Resolve(ctx, ep.ID, "user-1", true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !got.IsActive || got.NeedsPainCheck || got.EndTime != nil {
		t.Fatalf("still-hurting resolve wrong: %+v", got)
	}
	if !got.LastCheckTime.Equal(f.clock.Now()) {
		t.Fatalf("check timer not refreshed")
	}

	// The refreshed timer restarts the five-hour countdown.
	if err := f.escalator.NeedsCheckPass(ctx); err != nil {
		t.Fatalf("pass: %v", err)
	}
	after, _ := f.repo.FindByID(ctx, ep.ID)
	if after.NeedsPainCheck {
		t.Fatalf("flag re-raised immediately after resolve")
	}
}

func TestResolveNoLongerHurting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ep := f.report(t)

	f.clock.Advance(2 * time.Hour)
	got, err := f.svc.Resolve(ctx, ep.ID, "user-1", false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.IsActive || got.EndTime == nil {
		t.Fatalf("episode not ended: %+v", got)
	}
}

func TestResolveSilencesNag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ep := f.report(t)

	f.clock.Advance(25 * time.Hour)
	if err := f.escalator.Over24hPass(ctx); err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if _, err := f.svc.Resolve(ctx, ep.ID, "user-1", false); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	base := f.notifier.count()
	if err := f.escalator.NagPass(ctx); err != nil {
		t.Fatalf("nag: %v", err)
	}
	if f.notifier.count() != base {
		t.Fatalf("nag fired after resolution")
	}
}

func TestResolveOwnerScoped(t *testing.T) {
	f := newFixture(t)
	ep := f.report(t)

	if _, err := f.svc.Resolve(context.Background(), ep.ID, "user-2", false); !errors.Is(err, pain.ErrNotFound) {
		t.Fatalf("foreign resolve: got %v", err)
	}
}

func TestEscalationUsesCurrentToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.report(t)

	// Token rotated after the report; the directory wins over the episode copy.
	tokens := &tokenNotifier{}
	users := memory.NewUserDirectory()
	users.Put(&user.User{ID: "user-1", DeviceToken: "tok-new", Language: i18n.LangEN})
	esc := pain.NewEscalator(f.repo, users, tokens, nil, pain.DefaultEscalatorConfig(), f.clock, nil)

	f.clock.Advance(6 * time.Hour)
	if err := esc.NeedsCheckPass(ctx); err != nil {
		t.Fatalf("pass: %v", err)
	}
	if len(tokens.tokens) != 1 || tokens.tokens[0] != "tok-new" {
		t.Fatalf("sent to %v, want the rotated token", tokens.tokens)
	}
}

type tokenNotifier struct {
	mu     sync.Mutex
	tokens []string
}

func (n *tokenNotifier) Send(_ context.Context, token string, _ notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokens = append(n.tokens, token)
	return nil
}
