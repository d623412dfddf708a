package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sanacare/go-care/internal/scheduler"
)

func TestPollerRunsAndStops(t *testing.T) {
	var runs atomic.Int64
	p := scheduler.NewPoller("test", 10*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	}, nil, nil)

	p.Start()
	time.Sleep(100 * time.Millisecond)
	p.Stop()

	if runs.Load() == 0 {
		t.Fatalf("pass never ran")
	}

	settled := runs.Load()
	time.Sleep(50 * time.Millisecond)
	if runs.Load() != settled {
		t.Fatalf("pass ran after Stop")
	}
}

func TestPollerSingleFlight(t *testing.T) {
	var (
		runs    atomic.Int64
		release = make(chan struct{})
	)
	p := scheduler.NewPoller("slow", 10*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		<-release
		return nil
	}, nil, nil)

	p.Start()
	time.Sleep(100 * time.Millisecond)

	// Ten ticks elapsed while the first pass is still blocked; the guard must
	// have allowed only that one in.
	if got := runs.Load(); got != 1 {
		t.Fatalf("%d concurrent passes, want 1", got)
	}

	close(release)
	p.Stop()
}

func TestPollerSurvivesPassErrors(t *testing.T) {
	var runs atomic.Int64
	p := scheduler.NewPoller("failing", 10*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return context.DeadlineExceeded
	}, nil, nil)

	p.Start()
	time.Sleep(100 * time.Millisecond)
	p.Stop()

	if runs.Load() < 2 {
		t.Fatalf("poller stopped ticking after a failed pass (%d runs)", runs.Load())
	}
}
