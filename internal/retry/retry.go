// Package retry re-runs transient command failures on a fixed wait
// schedule.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/codeforge-ai/codeforge/internal/cmderr"
)

const (
	// DefaultMaxAttempts is the total attempt budget, first try included.
	DefaultMaxAttempts = 3
)

// DefaultSchedule is the wait between attempts. The last entry repeats when
// attempts outnumber the schedule.
var DefaultSchedule = []time.Duration{
	1 * time.Second,
	3 * time.Second,
	5 * time.Second,
}

// Strategy bounds how a unit of work is retried. Only errors whose kind is
// accepted by Retryable trigger another attempt; everything else propagates
// on first occurrence.
type Strategy struct {
	MaxAttempts int
	Schedule    []time.Duration
	Retryable   func(cmderr.Kind) bool
}

// Default returns the standard strategy: three attempts with 1s/3s/5s
// waits, retrying timeouts and unclassified failures only.
func Default() Strategy {
	return Strategy{
		MaxAttempts: DefaultMaxAttempts,
		Schedule:    DefaultSchedule,
		Retryable:   cmderr.Retryable,
	}
}

// Do runs op under the strategy. Non-retryable error kinds propagate
// immediately; after the attempt budget is spent the last error is
// returned. Context cancellation interrupts both waits and further
// attempts.
func (s Strategy) Do(ctx context.Context, op func() error) error {
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	schedule := s.Schedule
	if len(schedule) == 0 {
		schedule = DefaultSchedule
	}
	retryable := s.Retryable
	if retryable == nil {
		retryable = cmderr.Retryable
	}

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !retryable(cmderr.KindOf(err)) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(&scheduleBackOff{schedule: schedule}, uint64(attempts-1)),
		ctx,
	)
	return backoff.Retry(wrapped, b)
}

// scheduleBackOff walks a fixed wait schedule, repeating the final entry
// once the schedule is exhausted.
type scheduleBackOff struct {
	schedule []time.Duration
	next     int
}

func (b *scheduleBackOff) NextBackOff() time.Duration {
	if len(b.schedule) == 0 {
		return backoff.Stop
	}
	i := b.next
	if i >= len(b.schedule) {
		i = len(b.schedule) - 1
	}
	b.next++
	return b.schedule[i]
}

func (b *scheduleBackOff) Reset() {
	b.next = 0
}
