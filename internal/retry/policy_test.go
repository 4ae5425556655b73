package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDelayProgression(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		retry  int
		want   time.Duration
	}{
		{"fixed stays flat", Policy{Mode: ModeFixed, Initial: time.Second, Max: 10 * time.Second}, 3, time.Second},
		{"linear grows", Policy{Mode: ModeLinear, Initial: time.Second, Max: 10 * time.Second}, 3, 3 * time.Second},
		{"linear caps", Policy{Mode: ModeLinear, Initial: 4 * time.Second, Max: 10 * time.Second}, 5, 10 * time.Second},
		{"exponential doubles", Policy{Mode: ModeExponential, Initial: time.Second, Max: time.Minute}, 4, 8 * time.Second},
		{"exponential caps", Policy{Mode: ModeExponential, Initial: time.Second, Max: 5 * time.Second}, 4, 5 * time.Second},
		{"zeroth retry is free", Policy{Mode: ModeLinear, Initial: time.Second, Max: time.Minute}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Delay(tt.retry); got != tt.want {
				t.Errorf("Delay(%d) = %v, want %v", tt.retry, got, tt.want)
			}
		})
	}
}

func TestDoRecoversFromTransientFailure(t *testing.T) {
	pol := Policy{Mode: ModeFixed, Initial: time.Millisecond, Max: time.Millisecond, Retries: 2}
	calls := 0
	err := pol.Do(context.Background(), quiet(), "flaky", func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoGivesUpAfterBudget(t *testing.T) {
	pol := Policy{Mode: ModeFixed, Initial: time.Millisecond, Max: time.Millisecond, Retries: 1}
	cause := errors.New("still broken")
	calls := 0
	err := pol.Do(context.Background(), quiet(), "doomed", func() error {
		calls++
		return cause
	})
	if err == nil {
		t.Fatal("expected an error after the budget is spent")
	}
	if !errors.Is(err, cause) {
		t.Errorf("err = %v, want the last failure wrapped", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDoWithoutRetriesRunsOnce(t *testing.T) {
	cause := errors.New("boom")
	calls := 0
	err := Policy{}.Do(context.Background(), nil, "one-shot", func() error {
		calls++
		return cause
	})
	if !errors.Is(err, cause) {
		t.Errorf("err = %v, want %v", err, cause)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pol := Policy{Mode: ModeFixed, Initial: time.Hour, Max: time.Hour, Retries: 3}
	calls := 0
	err := pol.Do(ctx, quiet(), "held", func() error {
		calls++
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1, the delay must not run out the clock", calls)
	}
}
