package pain

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sanacare/go-care/internal/domain/user"
	"github.com/sanacare/go-care/internal/events"
	"github.com/sanacare/go-care/internal/i18n"
	"github.com/sanacare/go-care/internal/notify"
	"github.com/sanacare/go-care/pkg/clock"
)

// Stage names used in events and logs.
const (
	StageNeedsCheck = "needs-check"
	StageOver24h    = "over-24h"
	StageNag        = "ignored-nag"
)

// EscalatorConfig holds the stage thresholds.
type EscalatorConfig struct {
	// NeedsCheckAfter is how long after the last check an active episode is
	// flagged for a pain check.
	NeedsCheckAfter time.Duration
	// Over24hAfter is how long after the effective start an active episode
	// escalates to the over-24h stage.
	Over24hAfter time.Duration
}

// DefaultEscalatorConfig returns the production thresholds: a 5-hour check
// and a 24-hour escalation.
func DefaultEscalatorConfig() EscalatorConfig {
	return EscalatorConfig{
		NeedsCheckAfter: 5 * time.Hour,
		Over24hAfter:    24 * time.Hour,
	}
}

// Escalator advances episodes through the staged-notification lifecycle.
// Each pass is invoked by its own periodic ticker; persisted flags make
// re-running a pass idempotent.
type Escalator struct {
	repo     Repository
	users    user.Directory
	notifier notify.Notifier
	sink     EventSink
	config   EscalatorConfig
	clock    clock.Clock
	logger   *zap.Logger
	tracer   trace.Tracer
}

// EventSink publishes escalation events; see medication.EventSink.
type EventSink interface {
	PublishJSON(ctx context.Context, topic, key string, payload any) error
}

// NewEscalator creates the escalation state machine.
func NewEscalator(repo Repository, users user.Directory, notifier notify.Notifier, sink EventSink, cfg EscalatorConfig, clk clock.Clock, logger *zap.Logger) *Escalator {
	if cfg.NeedsCheckAfter <= 0 {
		cfg.NeedsCheckAfter = DefaultEscalatorConfig().NeedsCheckAfter
	}
	if cfg.Over24hAfter <= 0 {
		cfg.Over24hAfter = DefaultEscalatorConfig().Over24hAfter
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Escalator{
		repo:     repo,
		users:    users,
		notifier: notifier,
		sink:     sink,
		config:   cfg,
		clock:    clk,
		logger:   logger,
		tracer:   otel.Tracer("pain-escalator"),
	}
}

// NeedsCheckPass flags active episodes unchecked for the configured delay and
// notifies their owners. Already-flagged episodes are excluded, so each
// flagging produces exactly one notification.
func (e *Escalator) NeedsCheckPass(ctx context.Context) error {
	ctx, span := e.tracer.Start(ctx, "pain_needs_check_pass")
	defer span.End()

	now := e.clock.Now()
	due, err := e.repo.FindCheckDue(ctx, now.Add(-e.config.NeedsCheckAfter))
	if err != nil {
		return fmt.Errorf("find episodes due for check: %w", err)
	}
	span.SetAttributes(attribute.Int("episodes", len(due)))

	for _, ep := range due {
		ep.NeedsPainCheck = true
		ep.UpdatedAt = now

		e.notify(ctx, ep, func(lang i18n.Lang) notify.Message {
			if lang == i18n.LangEN {
				return notify.Message{
					Title: "Health Check",
					Body:  "You passed 5 hours already, tell us how you are feeling now!",
				}
			}
			return notify.Message{
				Title: "Bilan de santé",
				Body:  "Déjà 5 heures écoulées, dites-nous comment vous vous sentez !",
			}
		})

		if err := e.repo.Update(ctx, ep); err != nil {
			e.logger.Error("pain check flag persist failed",
				zap.String("episode_id", ep.ID), zap.Error(err))
			continue
		}
		e.logger.Info("pain check flagged",
			zap.String("episode_id", ep.ID),
			zap.String("user_id", ep.UserID))
		e.publish(ctx, ep, StageNeedsCheck, now)
	}
	return nil
}

// Over24hPass deactivates active episodes older than the 24-hour threshold,
// stamps their end time, and alerts their owners.
func (e *Escalator) Over24hPass(ctx context.Context) error {
	ctx, span := e.tracer.Start(ctx, "pain_over24h_pass")
	defer span.End()

	now := e.clock.Now()
	overdue, err := e.repo.FindActiveStartedBefore(ctx, now.Add(-e.config.Over24hAfter))
	if err != nil {
		return fmt.Errorf("find overdue episodes: %w", err)
	}
	span.SetAttributes(attribute.Int("episodes", len(overdue)))

	for _, ep := range overdue {
		endTime := now
		ep.IsActive = false
		ep.EndTime = &endTime
		ep.WasOver24h = true
		ep.UpdatedAt = now

		e.notify(ctx, ep, func(lang i18n.Lang) notify.Message {
			if lang == i18n.LangEN {
				return notify.Message{
					Title: "Health Alert",
					Body:  "You have passed the 24 hours and you must see your doctor!",
				}
			}
			return notify.Message{
				Title: "Alerte santé",
				Body:  "Les 24 heures sont dépassées, vous devez consulter votre médecin !",
			}
		})

		if err := e.repo.Update(ctx, ep); err != nil {
			e.logger.Error("over-24h escalation persist failed",
				zap.String("episode_id", ep.ID), zap.Error(err))
			continue
		}
		e.logger.Warn("pain episode escalated past 24h",
			zap.String("episode_id", ep.ID),
			zap.String("user_id", ep.UserID),
			zap.Time("started", ep.EffectiveStart()))
		e.publish(ctx, ep, StageOver24h, now)
	}
	return nil
}

// NagPass re-alerts the owner of every over-24h episode. It mutates no state
// and repeats every tick until an external actor resolves the episode.
func (e *Escalator) NagPass(ctx context.Context) error {
	ctx, span := e.tracer.Start(ctx, "pain_nag_pass")
	defer span.End()

	ignored, err := e.repo.FindOver24h(ctx)
	if err != nil {
		return fmt.Errorf("find ignored episodes: %w", err)
	}
	span.SetAttributes(attribute.Int("episodes", len(ignored)))

	now := e.clock.Now()
	for _, ep := range ignored {
		e.notify(ctx, ep, func(lang i18n.Lang) notify.Message {
			if lang == i18n.LangEN {
				return notify.Message{
					Title: "Emergency",
					Body:  "You are taking danger by ignoring the pain, please check your doctor now!",
				}
			}
			return notify.Message{
				Title: "Urgence",
				Body:  "Vous vous mettez en danger en ignorant la douleur, consultez votre médecin maintenant !",
			}
		})
		e.publish(ctx, ep, StageNag, now)
	}
	return nil
}

// notify resolves the owner's current device token and sends; the token
// recorded on the episode is only a fallback. Failures are logged, never
// propagated.
func (e *Escalator) notify(ctx context.Context, ep *Episode, compose func(lang i18n.Lang) notify.Message) {
	if e.notifier == nil {
		return
	}

	token := ep.DeviceToken
	lang := i18n.LangFR
	if e.users != nil {
		if u, err := e.users.Lookup(ctx, ep.UserID); err == nil {
			if u.DeviceToken != "" {
				token = u.DeviceToken
			}
			lang = u.Language
		} else {
			e.logger.Warn("owner lookup failed",
				zap.String("user_id", ep.UserID), zap.Error(err))
		}
	}
	if token == "" {
		return
	}

	if err := e.notifier.Send(ctx, token, compose(lang)); err != nil {
		e.logger.Warn("escalation notification failed",
			zap.String("episode_id", ep.ID), zap.Error(err))
	}
}

func (e *Escalator) publish(ctx context.Context, ep *Episode, stage string, at time.Time) {
	if e.sink == nil {
		return
	}
	err := e.sink.PublishJSON(ctx, events.TopicPainEvents, ep.ID, events.PainEscalated{
		EpisodeID: ep.ID, UserID: ep.UserID, Stage: stage, At: at,
	})
	if err != nil {
		e.logger.Warn("pain event publish failed",
			zap.String("episode_id", ep.ID), zap.Error(err))
	}
}
