package circuit

import (
	"errors"
	"testing"
	"time"

	"github.com/Payphone-Digital/adminauth/pkg/clock"
	"go.uber.org/zap"
)

func newTestBreaker(threshold int, timeout time.Duration) (*Breaker, *clock.Fake) {
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	b := NewBreaker("test", Config{
		Threshold:        threshold,
		Timeout:          timeout,
		SuccessThreshold: 2,
		Clock:            clk,
	}, zap.NewNop())
	return b, clk
}

func TestNewBreaker(t *testing.T) {
	breaker := NewBreaker("test", DefaultConfig(), nil)

	if breaker.State() != StateClosed {
		t.Errorf("Expected initial state CLOSED, got %s", breaker.State().String())
	}
}

func TestBreaker_TransitionToOpen(t *testing.T) {
	breaker, _ := newTestBreaker(3, time.Second)

	for i := 0; i < 3; i++ {
		breaker.Record(errors.New("redis down"))
	}

	if breaker.State() != StateOpen {
		t.Fatalf("Expected state OPEN after 3 failures, got %s", breaker.State().String())
	}
	if err := breaker.Allow(); err != ErrCircuitOpen {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreaker_HalfOpenThenClosed(t *testing.T) {
	breaker, clk := newTestBreaker(2, 100*time.Millisecond)

	breaker.Record(errors.New("error 1"))
	breaker.Record(errors.New("error 2"))
	clk.Advance(150 * time.Millisecond)

	if err := breaker.Allow(); err != nil {
		t.Fatalf("Expected Allow() to succeed after timeout, got %v", err)
	}
	if breaker.State() != StateHalfOpen {
		t.Fatalf("Expected state HALF_OPEN, got %s", breaker.State().String())
	}

	breaker.Record(nil)
	breaker.Record(nil)

	if breaker.State() != StateClosed {
		t.Errorf("Expected state CLOSED, got %s", breaker.State().String())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	breaker, clk := newTestBreaker(1, 50*time.Millisecond)

	breaker.Record(errors.New("error"))
	clk.Advance(time.Second)
	_ = breaker.Allow()
	breaker.Record(errors.New("still down"))

	if breaker.State() != StateOpen {
		t.Errorf("Expected state OPEN, got %s", breaker.State().String())
	}
}

func TestBreaker_Execute(t *testing.T) {
	breaker, _ := newTestBreaker(1, time.Minute)

	if err := breaker.Execute(func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	boom := errors.New("boom")
	if err := breaker.Execute(func() error { return boom }); err != boom {
		t.Fatalf("expected boom, got %v", err)
	}

	called := false
	err := breaker.Execute(func() error {
		called = true
		return nil
	})
	if err != ErrCircuitOpen || called {
		t.Errorf("expected fast failure without calling fn, got err=%v called=%v", err, called)
	}
}
