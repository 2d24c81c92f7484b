package entitylock

import (
	"github.com/juju/clock"

	"github.com/Iron-Ham/entitylock/internal/event"
	"github.com/Iron-Ham/entitylock/internal/logging"
)

// DefaultName is the locker name used when WithName is not given.
const DefaultName = "default"

// lockerConfig holds optional configuration for a Locker.
type lockerConfig struct {
	name   string
	clock  clock.Clock
	logger *logging.Logger
	bus    *event.Bus
}

// Option configures a Locker.
type Option func(*lockerConfig)

// WithName sets the name reported in logs, events, and errors.
func WithName(name string) Option {
	return func(c *lockerConfig) {
		if name != "" {
			c.name = name
		}
	}
}

// WithClock sets the clock used to bound timed acquisitions and measure
// wait times. Defaults to the wall clock.
func WithClock(clk clock.Clock) Option {
	return func(c *lockerConfig) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithLogger sets the logger. Acquire and release are logged at DEBUG,
// escalation at INFO, timeouts and interruptions at WARN.
func WithLogger(l *logging.Logger) Option {
	return func(c *lockerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithBus publishes lock lifecycle events to bus.
func WithBus(bus *event.Bus) Option {
	return func(c *lockerConfig) { c.bus = bus }
}
