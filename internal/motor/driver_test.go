package motor

import (
	"errors"
	"testing"
	"time"

	"github.com/foosbot/goalkeeper/internal/fault"
	"github.com/foosbot/goalkeeper/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(HardwareConfig{Driver: "does-not-exist"})
	assert.ErrorIs(t, err, fault.ErrConfiguration)
}

func TestOpen_SerialDriverNeedsPort(t *testing.T) {
	Register("test-serial", func(HardwareConfig) (Driver, error) { return NewSim(), nil })

	_, err := Open(HardwareConfig{Driver: "test-serial"})
	assert.ErrorIs(t, err, fault.ErrConfiguration)

	d, err := Open(HardwareConfig{Driver: "test-serial", Port: "/dev/ttyACM0", Baud: 38400})
	require.NoError(t, err)
	assert.NoError(t, d.Close())
}

func TestOpen_FactoryFailure(t *testing.T) {
	cause := errors.New("no such device")
	Register("broken", func(HardwareConfig) (Driver, error) { return nil, cause })

	_, err := Open(HardwareConfig{Driver: "broken", Port: "/dev/null"})
	assert.ErrorIs(t, err, fault.ErrConfiguration)
	assert.ErrorIs(t, err, cause)
}

func TestOpen_Sim(t *testing.T) {
	d, err := Open(HardwareConfig{Driver: "sim"})
	require.NoError(t, err)
	assert.Contains(t, Drivers(), "sim")

	enc, err := d.ReadEncoder(core.AxisLinear)
	require.NoError(t, err)
	assert.Equal(t, DefaultMeasurements().LinearDefault, enc)
}

type stepClock struct{ t time.Time }

func (c *stepClock) Now() time.Time { return c.t }

func TestSim_DriveIntegratesOverTime(t *testing.T) {
	clock := &stepClock{t: time.Unix(0, 0)}
	s := NewSim(WithSimClock(clock.Now), WithCountsPerSpeed(10))

	require.NoError(t, s.Drive(core.AxisRotational, 50))
	clock.t = clock.t.Add(time.Second)
	enc, err := s.ReadEncoder(core.AxisRotational)
	require.NoError(t, err)
	assert.Equal(t, int64(135+500), enc)
}

func TestSim_LinearLimitSwitch(t *testing.T) {
	clock := &stepClock{t: time.Unix(0, 0)}
	s := NewSim(WithSimClock(clock.Now), WithCountsPerSpeed(10))

	require.NoError(t, s.Drive(core.AxisLinear, -30))
	clock.t = clock.t.Add(10 * time.Second)

	speed, err := s.ReadSpeed(core.AxisLinear)
	require.NoError(t, err)
	assert.Equal(t, int64(0), speed)
	enc, _ := s.ReadEncoder(core.AxisLinear)
	assert.Equal(t, int64(0), enc)
}

func TestBus_WrapsDriverErrorsAsActuatorFaults(t *testing.T) {
	s := NewSim()
	cause := errors.New("checksum mismatch")
	s.Fail(cause)
	b := NewBus(s)

	_, err := b.ReadEncoder(core.AxisLinear)
	assert.ErrorIs(t, err, fault.ErrActuator)
	assert.ErrorIs(t, err, cause)

	_, _, err = b.ReadEncoders()
	assert.ErrorIs(t, err, fault.ErrActuator)

	assert.ErrorIs(t, b.Drive(core.AxisRotational, 10), fault.ErrActuator)
	assert.ErrorIs(t, b.MoveTo(core.AxisLinear, defaultProfile.At(10)), fault.ErrActuator)
}
