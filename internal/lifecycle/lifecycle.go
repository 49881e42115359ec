package lifecycle

import (
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// State is the serving state of one process. Health reports shutting-down
// once BeginShutdown has been called.
type State struct {
	clock        clockwork.Clock
	started      time.Time
	shuttingDown atomic.Bool
}

// New returns a State whose uptime is measured from now on clock.
func New(clock clockwork.Clock) *State {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &State{clock: clock, started: clock.Now()}
}

// BeginShutdown marks the process as draining. Call when SIGTERM/SIGINT is received.
func (s *State) BeginShutdown() {
	s.shuttingDown.Store(true)
}

// IsShuttingDown returns true if the process is draining and should not receive new traffic.
func (s *State) IsShuttingDown() bool {
	return s.shuttingDown.Load()
}

// Uptime is the time since New.
func (s *State) Uptime() time.Duration {
	return s.clock.Since(s.started)
}
