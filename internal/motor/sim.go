package motor

import (
	"fmt"
	"sync"
	"time"

	"github.com/foosbot/goalkeeper/pkg/core"
)

// DefaultSimCountsPerSpeed is how many encoder counts per second the
// simulator advances for each unit of open-loop speed.
const DefaultSimCountsPerSpeed = 20

// Sim is an in-process Driver used for development and tests. Open-loop
// moves integrate over wall-clock time; position moves complete instantly.
// The linear axis has a limit switch at zero that stops the axis and zeroes
// its encoder, like the real controller firmware.
type Sim struct {
	mu             sync.Mutex
	now            func() time.Time
	countsPerSpeed float64
	axes           map[core.Axis]*simAxis
	failure        error
	calls          []string
	closed         bool
}

type simAxis struct {
	enc     float64
	speed   int
	updated time.Time
	limit   bool
}

// SimOption configures a Sim.
type SimOption func(*Sim)

// WithSimClock replaces time.Now.
func WithSimClock(now func() time.Time) SimOption {
	return func(s *Sim) { s.now = now }
}

// WithCountsPerSpeed sets the open-loop integration rate.
func WithCountsPerSpeed(c float64) SimOption {
	return func(s *Sim) { s.countsPerSpeed = c }
}

// NewSim creates a simulator with both axes at their default positions.
func NewSim(opts ...SimOption) *Sim {
	s := &Sim{now: time.Now, countsPerSpeed: DefaultSimCountsPerSpeed}
	for _, opt := range opts {
		opt(s)
	}
	m := DefaultMeasurements()
	t := s.now()
	s.axes = map[core.Axis]*simAxis{
		core.AxisLinear:     {enc: float64(m.LinearDefault), updated: t, limit: true},
		core.AxisRotational: {enc: float64(m.RotationalDefault), updated: t},
	}
	return s
}

// Fail makes every following call return err. Passing nil heals the driver.
func (s *Sim) Fail(err error) {
	s.mu.Lock()
	s.failure = err
	s.mu.Unlock()
}

// Calls returns the log of commands sent to the driver.
func (s *Sim) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *Sim) axis(a core.Axis) (*simAxis, error) {
	if s.failure != nil {
		return nil, s.failure
	}
	if s.closed {
		return nil, fmt.Errorf("driver closed")
	}
	ax, ok := s.axes[a]
	if !ok {
		return nil, fmt.Errorf("unknown axis %s", a)
	}
	now := s.now()
	if ax.speed != 0 {
		ax.enc += float64(ax.speed) * s.countsPerSpeed * now.Sub(ax.updated).Seconds()
		if ax.limit && ax.enc <= 0 {
			ax.enc, ax.speed = 0, 0
		}
	}
	ax.updated = now
	return ax, nil
}

func (s *Sim) ReadEncoder(a core.Axis) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ax, err := s.axis(a)
	if err != nil {
		return 0, err
	}
	return int64(ax.enc), nil
}

func (s *Sim) SetEncoder(a core.Axis, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ax, err := s.axis(a)
	if err != nil {
		return err
	}
	ax.enc = float64(value)
	s.calls = append(s.calls, fmt.Sprintf("set %s %d", a, value))
	return nil
}

func (s *Sim) Drive(a core.Axis, speed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ax, err := s.axis(a)
	if err != nil {
		return err
	}
	ax.speed = speed
	s.calls = append(s.calls, fmt.Sprintf("drive %s %d", a, speed))
	return nil
}

func (s *Sim) MoveToPosition(a core.Axis, p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ax, err := s.axis(a)
	if err != nil {
		return err
	}
	ax.enc, ax.speed = float64(p.Position), 0
	s.calls = append(s.calls, fmt.Sprintf("move %s %d", a, p.Position))
	return nil
}

func (s *Sim) ReadSpeed(a core.Axis) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ax, err := s.axis(a)
	if err != nil {
		return 0, err
	}
	return int64(ax.speed), nil
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
