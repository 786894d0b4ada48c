package testutil

import (
	"sync"
	"time"

	"github.com/hupe1980/impromptu/core"
)

// Epoch is the reference instant used by scenario tests: 2025-06-05T09:00:00Z.
var Epoch = time.Date(2025, 6, 5, 9, 0, 0, 0, time.UTC)

// StepClock returns a clock starting at start that advances by step on every read.
func StepClock(start time.Time, step time.Duration) core.Clock {
	var (
		mu  sync.Mutex
		cur = start
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := cur
		cur = cur.Add(step)
		return now
	}
}
