package circuit

import (
	"strings"
	"testing"
	"time"
)

func TestBreakerTripsOnConsecutiveFailures(t *testing.T) {
	b := NewBreaker(&Config{
		Enabled:                true,
		MaxConsecutiveFailures: 3,
		Cooldown:               time.Hour,
		MaxOrdersPerMinute:     100,
	})

	b.RecordFailure()
	b.RecordFailure()
	if b.GetState() != StateClosed {
		t.Fatal("breaker should stay closed below the failure limit")
	}

	b.RecordFailure()
	if b.GetState() != StateOpen {
		t.Fatal("breaker should open at the failure limit")
	}

	ok, reason := b.Allow()
	if ok {
		t.Fatal("open breaker must not allow orders")
	}
	if !strings.Contains(reason, "cooldown remaining") {
		t.Errorf("unexpected reason: %s", reason)
	}
}

func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	b := NewBreaker(&Config{
		Enabled:                true,
		MaxConsecutiveFailures: 3,
		Cooldown:               time.Hour,
		MaxOrdersPerMinute:     100,
	})

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	if b.GetState() != StateClosed {
		t.Error("success should reset the consecutive failure count")
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := NewBreaker(&Config{
		Enabled:                true,
		MaxConsecutiveFailures: 1,
		Cooldown:               time.Millisecond,
		MaxOrdersPerMinute:     100,
	})

	b.RecordFailure()
	if b.GetState() != StateOpen {
		t.Fatal("breaker should be open")
	}

	time.Sleep(5 * time.Millisecond)

	if ok, reason := b.Allow(); !ok {
		t.Fatalf("expired cooldown should allow a probe order: %s", reason)
	}
	if b.GetState() != StateHalfOpen {
		t.Fatal("breaker should be half-open after cooldown")
	}

	b.RecordSuccess()
	if b.GetState() != StateClosed {
		t.Error("successful probe should close the breaker")
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(&Config{
		Enabled:                true,
		MaxConsecutiveFailures: 5,
		Cooldown:               time.Millisecond,
		MaxOrdersPerMinute:     100,
	})

	b.RecordFailure()
	b.RecordFailure()
	b.RecordFailure()
	b.RecordFailure()
	b.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	if ok, _ := b.Allow(); !ok {
		t.Fatal("probe should be allowed")
	}

	b.RecordFailure()
	if b.GetState() != StateOpen {
		t.Error("failed probe should re-open the breaker immediately")
	}
}

func TestBreakerRateLimit(t *testing.T) {
	b := NewBreaker(&Config{
		Enabled:                true,
		MaxConsecutiveFailures: 100,
		Cooldown:               time.Hour,
		MaxOrdersPerMinute:     2,
	})

	b.RecordSuccess()
	b.RecordSuccess()

	ok, reason := b.Allow()
	if ok {
		t.Fatal("rate limit should block the third order")
	}
	if !strings.Contains(reason, "rate limit") {
		t.Errorf("unexpected reason: %s", reason)
	}
}

func TestBreakerDisabledAllowsEverything(t *testing.T) {
	b := NewBreaker(&Config{Enabled: false, MaxConsecutiveFailures: 1})
	b.RecordFailure()
	b.RecordFailure()
	if ok, _ := b.Allow(); !ok {
		t.Error("disabled breaker must always allow")
	}
}

func TestBreakerForceReset(t *testing.T) {
	b := NewBreaker(&Config{
		Enabled:                true,
		MaxConsecutiveFailures: 1,
		Cooldown:               time.Hour,
		MaxOrdersPerMinute:     100,
	})

	b.RecordFailure()
	if b.GetState() != StateOpen {
		t.Fatal("breaker should be open")
	}

	b.ForceReset()
	if b.GetState() != StateClosed {
		t.Error("force reset should close the breaker")
	}
	if ok, reason := b.Allow(); !ok {
		t.Errorf("orders should flow after reset: %s", reason)
	}
}
