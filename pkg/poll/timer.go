package poll

import (
	"math"
	"time"
)

// Timer computes the wait between two polls. Without a MaxDuration the wait doubles up to MaxRetry times; with
// one, it never exceeds it.
type Timer struct {
	BaseDuration time.Duration
	MaxDuration  time.Duration
	RetryCount   int
	MaxRetry     int
}

func (p *Timer) Duration() time.Duration {
	d := p.BaseDuration * time.Duration(
		math.Pow(2, float64(p.RetryCount)),
	)

	if p.MaxDuration > 0 && (d > p.MaxDuration || d <= 0) {
		return p.MaxDuration
	}

	return d
}

func (p *Timer) Reset() {
	p.RetryCount = 0
}

func (p *Timer) Increase() {
	if p.MaxRetry > 0 && p.RetryCount < p.MaxRetry {
		p.RetryCount++
	}
}
