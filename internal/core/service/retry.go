package service

import "time"

const (
	defaultPollInterval = 200 * time.Millisecond
	defaultPollBudget   = 6 * time.Second
)

// RetryPolicy bounds the sign-in session poll.
type RetryPolicy struct {
	Interval    time.Duration
	MaxDuration time.Duration
}

// DefaultRetryPolicy polls every 200ms for up to 6s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Interval: defaultPollInterval, MaxDuration: defaultPollBudget}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Interval <= 0 {
		p.Interval = defaultPollInterval
	}
	if p.MaxDuration <= 0 {
		p.MaxDuration = defaultPollBudget
	}
	return p
}

// Clock is the time source of the poll. Tests inject a fake one.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}
