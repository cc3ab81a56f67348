package runner

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/atomic"
)

var (
	ErrNoStoppingCondition           = errors.New("either a count or a duration must be set")
	ErrConflictingStoppingConditions = errors.New("count and duration cannot both be set")
	ErrNegativeCount                 = errors.New("count must be non-negative")
	ErrNegativeDuration              = errors.New("duration must be positive")
)

// StoppingPolicy decides whether workers may dispatch another write.
// Implementations are shared by every worker and must be safe for concurrent
// use. Once Acquire returns false it returns false forever.
type StoppingPolicy interface {
	// Acquire reserves one write. It returns false when the run is over.
	Acquire() bool
	// Exhausted reports whether Acquire can no longer succeed. It never
	// reserves anything.
	Exhausted() bool
}

// NewPolicy builds the stopping policy for a run. Exactly one of count
// (with countSet) or duration must be provided.
func NewPolicy(count int64, countSet bool, duration time.Duration) (StoppingPolicy, error) {
	switch {
	case countSet && duration > 0:
		return nil, &ConfigurationError{Option: "count/duration", Err: ErrConflictingStoppingConditions}
	case countSet:
		if count < 0 {
			return nil, &ConfigurationError{Option: "count", Err: ErrNegativeCount}
		}
		return NewCountPolicy(count), nil
	case duration > 0:
		return NewDeadlinePolicy(duration), nil
	case duration < 0:
		return nil, &ConfigurationError{Option: "duration", Err: ErrNegativeDuration}
	default:
		return nil, &ConfigurationError{Option: "count/duration", Err: ErrNoStoppingCondition}
	}
}

// CountPolicy allows a fixed number of writes.
type CountPolicy struct {
	total     int64
	remaining atomic.Int64
}

func NewCountPolicy(count int64) *CountPolicy {
	if count < 0 {
		count = 0
	}
	p := &CountPolicy{total: count}
	p.remaining.Store(count)
	return p
}

func (p *CountPolicy) Acquire() bool {
	for {
		current := p.remaining.Load()
		if current <= 0 {
			return false
		}
		if p.remaining.CompareAndSwap(current, current-1) {
			return true
		}
	}
}

func (p *CountPolicy) Exhausted() bool {
	return p.remaining.Load() <= 0
}

// Remaining returns the number of writes not yet reserved.
func (p *CountPolicy) Remaining() int64 {
	return p.remaining.Load()
}

// Total returns the configured count.
func (p *CountPolicy) Total() int64 {
	return p.total
}

// DeadlinePolicy allows writes until a wall-clock deadline. The deadline is
// fixed when Start is called, or on the first Acquire if Start never was.
//
// A write acquired just before the deadline still runs to completion, so a
// run overshoots the deadline by at most one write latency.
type DeadlinePolicy struct {
	duration time.Duration
	now      func() time.Time

	once    sync.Once
	end     atomic.Time
	expired atomic.Bool
}

func NewDeadlinePolicy(duration time.Duration) *DeadlinePolicy {
	return &DeadlinePolicy{duration: duration, now: time.Now}
}

// Start arms the deadline relative to start. Later calls are ignored.
func (p *DeadlinePolicy) Start(start time.Time) {
	p.once.Do(func() {
		p.end.Store(start.Add(p.duration))
	})
}

func (p *DeadlinePolicy) Acquire() bool {
	return !p.Exhausted()
}

func (p *DeadlinePolicy) Exhausted() bool {
	if p.expired.Load() {
		return true
	}
	p.Start(p.now())
	if !p.now().Before(p.end.Load()) {
		p.expired.Store(true)
		return true
	}
	return false
}

// Deadline returns the instant after which no write is acquired. It is the
// zero time until the policy has been started.
func (p *DeadlinePolicy) Deadline() time.Time {
	return p.end.Load()
}

// Duration returns the configured run length.
func (p *DeadlinePolicy) Duration() time.Duration {
	return p.duration
}
