package motor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/foosbot/goalkeeper/internal/fault"
	"github.com/foosbot/goalkeeper/pkg/core"
)

// Profile is a closed-loop position move.
type Profile struct {
	Position int64
	Accel    uint32
	Speed    uint32
	Decel    uint32
}

// At returns a copy of p targeting position.
func (p Profile) At(position int64) Profile {
	p.Position = position
	return p
}

// Driver is one transaction-level motor controller. Implementations are not
// required to be safe for concurrent use; Bus serialises access.
type Driver interface {
	ReadEncoder(axis core.Axis) (int64, error)
	SetEncoder(axis core.Axis, value int64) error
	// Drive runs the axis open-loop. Positive speeds move forward,
	// negative speeds backward and zero stops the axis.
	Drive(axis core.Axis, speed int) error
	MoveToPosition(axis core.Axis, p Profile) error
	ReadSpeed(axis core.Axis) (int64, error)
	Close() error
}

// HardwareConfig selects and addresses the motor controller.
type HardwareConfig struct {
	Driver string
	Port   string
	Baud   int
}

// Factory opens a driver for cfg.
type Factory func(cfg HardwareConfig) (Driver, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		"sim": func(HardwareConfig) (Driver, error) { return NewSim(), nil },
	}
)

// Register makes a driver available under name. Serial controller drivers
// register themselves from their own packages.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Drivers lists the registered driver names.
func Drivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Open connects to the configured driver. Any failure is a configuration
// error: the robot cannot start without its actuators.
func Open(cfg HardwareConfig) (Driver, error) {
	registryMu.RLock()
	f, ok := registry[cfg.Driver]
	registryMu.RUnlock()
	if !ok {
		return nil, fault.Configurationf("unknown motor driver %q (available: %v)", cfg.Driver, Drivers())
	}
	if cfg.Driver != "sim" && cfg.Port == "" {
		return nil, fault.Configurationf("SERIAL_PORT not set for motor driver %q", cfg.Driver)
	}
	d, err := f(cfg)
	if err != nil {
		return nil, fault.Configuration(fmt.Errorf("open motor driver %q: %w", cfg.Driver, err))
	}
	return d, nil
}
