package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_Success(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Fixed(3, time.Millisecond), nil, func(ctx context.Context) error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("Do() returned error = %v, want nil", err)
	}
	if attempts != 1 {
		t.Errorf("Do() made %d attempts, want 1", attempts)
	}
}

func TestDo_PermanentError(t *testing.T) {
	permanentErr := errors.New("permanent")

	tests := []struct {
		name       string
		classifier ErrorClassifier
		err        error
	}{
		{"classifier rejects", func(err error) bool { return !errors.Is(err, permanentErr) }, permanentErr},
		{"wrapped permanent", nil, Permanent(permanentErr)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := Do(context.Background(), Fixed(3, time.Millisecond), tt.classifier, func(ctx context.Context) error {
				attempts++
				return tt.err
			})
			if !errors.Is(err, permanentErr) {
				t.Errorf("Do() returned error = %v, want %v", err, permanentErr)
			}
			if attempts != 1 {
				t.Errorf("Do() made %d attempts, want 1", attempts)
			}
		})
	}
}

func TestDo_RetryableError(t *testing.T) {
	attempts := 0
	tempErr := errors.New("temporary")
	successAfter := 2

	err := Do(context.Background(), Fixed(5, time.Millisecond), IsRetryable, func(ctx context.Context) error {
		attempts++
		if attempts < successAfter {
			return tempErr
		}
		return nil
	})

	if err != nil {
		t.Errorf("Do() returned error = %v, want nil", err)
	}
	if attempts != successAfter {
		t.Errorf("Do() made %d attempts, want %d", attempts, successAfter)
	}
}

func TestDo_MaxRetriesExceeded(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		wantWrap   bool
	}{
		{"no retries", 0, false},
		{"one retry", 1, true},
		{"three retries", 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			tempErr := errors.New("temporary")
			err := Do(context.Background(), Fixed(tt.maxRetries, time.Millisecond), IsRetryable, func(ctx context.Context) error {
				attempts++
				return tempErr
			})

			if !errors.Is(err, tempErr) {
				t.Errorf("Do() error = %v, want wrapping %v", err, tempErr)
			}
			if got := errors.Is(err, ErrRetriesExhausted); got != tt.wantWrap {
				t.Errorf("errors.Is(err, ErrRetriesExhausted) = %v, want %v", got, tt.wantWrap)
			}
			if attempts != tt.maxRetries+1 {
				t.Errorf("Do() made %d attempts, want %d", attempts, tt.maxRetries+1)
			}
		})
	}
}

func TestDo_OnRetry(t *testing.T) {
	var delays []time.Duration
	cfg := Fixed(2, 3*time.Millisecond)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
	}

	Do(context.Background(), cfg, nil, func(ctx context.Context) error {
		return errors.New("fail")
	})

	if len(delays) != 2 {
		t.Fatalf("OnRetry called %d times, want 2", len(delays))
	}
	for i, d := range delays {
		if d != 3*time.Millisecond {
			t.Errorf("delay[%d] = %v, want fixed 3ms", i, d)
		}
	}
}

func TestDo_ContextCanceled(t *testing.T) {
	attempts := 0
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, Fixed(5, time.Second), nil, func(ctx context.Context) error {
		attempts++
		return errors.New("retry me")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() returned error = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("Do() made %d attempts, want 1", attempts)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"context canceled", context.Canceled, false},
		{"context deadline", context.DeadlineExceeded, false},
		{"permanent", Permanent(errors.New("x")), false},
		{"generic error", errors.New("some error"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestExponentialBackoffCapped(t *testing.T) {
	var delays []time.Duration
	cfg := Exponential(4, 2*time.Millisecond, 5*time.Millisecond)
	cfg.JitterFraction = 0
	cfg.OnRetry = func(_ int, _ error, d time.Duration) { delays = append(delays, d) }

	Do(context.Background(), cfg, nil, func(ctx context.Context) error { return errors.New("x") })

	want := []time.Duration{2 * time.Millisecond, 4 * time.Millisecond, 5 * time.Millisecond, 5 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("got %d delays, want %d", len(delays), len(want))
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
}
