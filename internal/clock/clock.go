// Package clock abstracts wall time so billing period math is testable.
package clock

import (
	"time"

	"go.uber.org/fx"
)

var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func NewSystemClock() Clock {
	return systemClock{}
}

// Now returns the current time in UTC. All billing computations are
// UTC-anchored to avoid off-by-one-month bugs near month boundaries.
func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
