package clock

import (
	"github.com/benbjohnson/clock"
)

type Clock = clock.Clock
type Ticker = clock.Ticker
type Mock = clock.Mock

var globalClock Clock = clock.New()

// Get returns the wall clock used by default by the render loop.
func Get() Clock {
	return globalClock
}

func Set(clk Clock) {
	globalClock = clk
}

func New() Clock {
	return clock.New()
}

func NewMock() *Mock {
	return clock.NewMock()
}
