package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool, what string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNew_Rejects(t *testing.T) {
	t.Parallel()

	noop := func(context.Context) error { return nil }
	tests := []struct {
		name     string
		interval time.Duration
		tick     TickFunc
	}{
		{"zero interval", 0, noop},
		{"negative interval", -time.Second, noop},
		{"nil tick", time.Minute, nil},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s, err := New("resend-sweep", tc.interval, tc.tick, nil)
			if err == nil || s != nil {
				t.Fatalf("expected error and nil scheduler, got %v, %#v", err, s)
			}
		})
	}
}

func TestScheduler_SweepLifecycle(t *testing.T) {
	var sweeps atomic.Int64

	// the hour-long interval means every sweep seen here is the one run on Start
	s, err := New("resend-sweep", time.Hour, func(context.Context) error {
		sweeps.Add(1)
		return nil
	}, quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if st := s.Status(); st.Running || st.Ticks != 0 || st.LastRun != nil || st.Interval != "1h0m0s" {
		t.Fatalf("unexpected initial status: %+v", st)
	}
	if s.Stop() {
		t.Fatalf("expected Stop on an idle scheduler to report false")
	}

	for round := int64(1); round <= 2; round++ {
		if !s.Start() {
			t.Fatalf("round %d: expected Start to report true", round)
		}
		if s.Start() {
			t.Fatalf("round %d: expected a second Start to report false", round)
		}
		if !s.Status().Running {
			t.Fatalf("round %d: expected running status", round)
		}

		eventually(t, 500*time.Millisecond, func() bool { return sweeps.Load() >= round }, "sweep on start")

		if !s.Stop() {
			t.Fatalf("round %d: expected Stop to report true", round)
		}
		if s.IsRunning() {
			t.Fatalf("round %d: expected stopped scheduler", round)
		}
	}

	if got := s.Status().Ticks; got != 2 {
		t.Fatalf("expected one sweep per start, got %d", got)
	}
}

func TestScheduler_NoSweepsAfterStop(t *testing.T) {
	var sweeps atomic.Int64

	s, err := New("resend-sweep", 10*time.Millisecond, func(context.Context) error {
		sweeps.Add(1)
		return nil
	}, quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.Start()
	eventually(t, 750*time.Millisecond, func() bool { return sweeps.Load() >= 2 }, "two sweeps")
	s.Stop()

	before := sweeps.Load()
	time.Sleep(100 * time.Millisecond)
	if after := sweeps.Load(); after != before {
		t.Fatalf("expected no sweeps after Stop, got %d then %d", before, after)
	}
}

func TestScheduler_StatusTracksLastSweep(t *testing.T) {
	var n atomic.Int64

	s, err := New("resend-sweep", 10*time.Millisecond, func(context.Context) error {
		switch n.Add(1) {
		case 1:
			return errors.New("load unresolved: store unavailable")
		case 2:
			panic("boom")
		default:
			return nil
		}
	}, quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.Start()
	defer s.Stop()

	eventually(t, 500*time.Millisecond, func() bool { return s.Status().Ticks >= 1 }, "first sweep")
	if st := s.Status(); st.Ticks == 1 && st.LastError != "load unresolved: store unavailable" {
		t.Fatalf("expected sweep error in status, got %+v", st)
	}

	// a panicking sweep is recorded and the loop keeps going
	eventually(t, 750*time.Millisecond, func() bool { return s.Status().Ticks >= 3 }, "sweeps after panic")
	st := s.Status()
	if st.LastError != "" {
		t.Fatalf("expected a clean sweep to clear the error, got %q", st.LastError)
	}
	if st.LastRun == nil {
		t.Fatalf("expected last run to be set")
	}
}

func TestScheduler_StopCancelsRunningSweep(t *testing.T) {
	started := make(chan struct{})
	var sawCancel atomic.Bool

	s, err := New("resend-sweep", time.Hour, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		sawCancel.Store(true)
		return ctx.Err()
	}, quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.Start()
	select {
	case <-started:
	case <-time.After(500 * time.Millisecond):
		s.Stop()
		t.Fatalf("sweep did not start")
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("Stop did not return while a sweep was running")
	}

	if !sawCancel.Load() {
		t.Fatalf("expected the sweep context to be cancelled")
	}
	if st := s.Status(); !strings.Contains(st.LastError, "context canceled") {
		t.Fatalf("expected cancellation in status, got %q", st.LastError)
	}
}
