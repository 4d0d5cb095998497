package provider

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// Policy is the bounded retry policy for transient failures.
type Policy struct {
	MaxAttempts int           // total attempts including the first
	BaseDelay   time.Duration // delay before the second attempt, before jitter
}

// DefaultPolicy makes at most three attempts starting from 500ms.
var DefaultPolicy = Policy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}

// jitterFloor is the lower bound of the jitter window as a fraction of the
// exponential delay; the upper bound is 1.
const jitterFloor = 0.5

// Delay returns the sleep after the given failed attempt (1-based). draw in
// [0,1) places the delay inside [50%, 100%] of base*2^(attempt-1). It is a
// pure function so the schedule can be tested without timers.
func (p Policy) Delay(attempt int, draw float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if draw < 0 {
		draw = 0
	}
	if draw > 1 {
		draw = 1
	}
	exp := p.BaseDelay << (attempt - 1)
	if exp < p.BaseDelay { // overflow
		exp = p.BaseDelay
	}
	frac := jitterFloor + (1-jitterFloor)*draw
	return time.Duration(float64(exp) * frac)
}

// ExpectedDelay is the mean of Delay over a uniform draw.
func (p Policy) ExpectedDelay(attempt int) time.Duration {
	return p.Delay(attempt, 0.5)
}

// backoff adapts the policy to go-retry, stopping after MaxAttempts.
func (p Policy) backoff(draw func() float64) retry.Backoff {
	var (
		mu       sync.Mutex
		attempts = 1
	)
	max := p.MaxAttempts
	if max < 1 {
		max = 1
	}
	return retry.BackoffFunc(func() (time.Duration, bool) {
		mu.Lock()
		defer mu.Unlock()
		if attempts >= max {
			return 0, true
		}
		d := p.Delay(attempts, draw())
		attempts++
		return d, false
	})
}

func defaultDraw() float64 { return rand.Float64() }
