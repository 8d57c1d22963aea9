package motor

import (
	"fmt"
	"sync"

	"github.com/foosbot/goalkeeper/internal/fault"
	"github.com/foosbot/goalkeeper/pkg/core"
)

// Bus shares one Driver between the sub-controllers. Every method holds the
// lock for exactly one transaction, never across a wait for motion.
type Bus struct {
	mu sync.Mutex
	d  Driver
}

// NewBus wraps d.
func NewBus(d Driver) *Bus {
	return &Bus{d: d}
}

func (b *Bus) ReadEncoder(axis core.Axis) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, err := b.d.ReadEncoder(axis)
	if err != nil {
		return 0, fault.Actuator(fmt.Errorf("read %s encoder: %w", axis, err))
	}
	return v, nil
}

// ReadEncoders reads both axes in one locked section.
func (b *Bus) ReadEncoders() (linear, rotational int64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if linear, err = b.d.ReadEncoder(core.AxisLinear); err != nil {
		return 0, 0, fault.Actuator(fmt.Errorf("read linear encoder: %w", err))
	}
	if rotational, err = b.d.ReadEncoder(core.AxisRotational); err != nil {
		return 0, 0, fault.Actuator(fmt.Errorf("read rotational encoder: %w", err))
	}
	return linear, rotational, nil
}

func (b *Bus) SetEncoder(axis core.Axis, value int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.d.SetEncoder(axis, value); err != nil {
		return fault.Actuator(fmt.Errorf("set %s encoder: %w", axis, err))
	}
	return nil
}

func (b *Bus) Drive(axis core.Axis, speed int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.d.Drive(axis, speed); err != nil {
		return fault.Actuator(fmt.Errorf("drive %s at %d: %w", axis, speed, err))
	}
	return nil
}

func (b *Bus) MoveTo(axis core.Axis, p Profile) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.d.MoveToPosition(axis, p); err != nil {
		return fault.Actuator(fmt.Errorf("move %s to %d: %w", axis, p.Position, err))
	}
	return nil
}

func (b *Bus) ReadSpeed(axis core.Axis) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, err := b.d.ReadSpeed(axis)
	if err != nil {
		return 0, fault.Actuator(fmt.Errorf("read %s speed: %w", axis, err))
	}
	return v, nil
}

// Close closes the driver.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.d.Close()
}
