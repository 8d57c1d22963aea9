// Package calibration loads the field geometry written by the marker
// calibration step. A missing or inconsistent snapshot is a configuration
// error and aborts startup.
package calibration

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/foosbot/goalkeeper/internal/config"
	"github.com/foosbot/goalkeeper/internal/fault"
	"github.com/foosbot/goalkeeper/internal/prediction"
)

// Calibration is one snapshot of the field geometry, in field-relative
// millimetres.
type Calibration struct {
	CapturedAt          time.Time `yaml:"captured_at,omitempty"`
	FrameRate           int       `yaml:"frame_rate"`
	TargetX             float64   `yaml:"target_x"`
	FieldTop            float64   `yaml:"field_top"`
	FieldBottom         float64   `yaml:"field_bottom"`
	BallRadius          float64   `yaml:"ball_radius,omitempty"`
	StrikeZoneThreshold float64   `yaml:"strike_zone_threshold,omitempty"`
	PixelsPerMM         float64   `yaml:"pixels_per_mm,omitempty"`
}

// Load reads and validates the snapshot at path.
func Load(path string) (*Calibration, error) {
	if path == "" {
		return nil, fault.Configurationf("calibration file not set")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fault.Configurationf("calibration file %s not found", path)
		}
		return nil, fault.Configuration(fmt.Errorf("read calibration: %w", err))
	}
	return Parse(data)
}

// Parse decodes and validates a YAML snapshot.
func Parse(data []byte) (*Calibration, error) {
	var c Calibration
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fault.Configuration(fmt.Errorf("decode calibration: %w", err))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the geometry is usable for prediction.
func (c *Calibration) Validate() error {
	switch {
	case c.TargetX <= 0:
		return fault.Configurationf("target_x must be positive, got %g", c.TargetX)
	case c.FieldTop >= c.FieldBottom:
		return fault.Configurationf("field_top %g must be below field_bottom %g", c.FieldTop, c.FieldBottom)
	case c.FrameRate < 0:
		return fault.Configurationf("frame_rate must not be negative, got %d", c.FrameRate)
	case c.BallRadius < 0:
		return fault.Configurationf("ball_radius must not be negative, got %g", c.BallRadius)
	case c.StrikeZoneThreshold < 0:
		return fault.Configurationf("strike_zone_threshold must not be negative, got %g", c.StrikeZoneThreshold)
	}
	return nil
}

// PredictorParams merges the snapshot with predictor tuning. Values the
// snapshot carries win over the tuning; zero tuning values keep the
// predictor defaults.
func (c *Calibration) PredictorParams(cfg config.PredictorConfig) (prediction.Params, error) {
	p := prediction.DefaultParams()

	setFloat(&p.BallRadius, cfg.BallRadius)
	setInt(&p.FrameRate, cfg.FrameRate)
	setFloat(&p.Damping, cfg.Damping)
	setFloat(&p.Restitution, cfg.Restitution)
	setFloat(&p.SpeedThreshold, cfg.SpeedThreshold)
	setFloat(&p.StrikeZoneThreshold, cfg.StrikeZoneThreshold)
	if cfg.MaxCrossingTime > 0 {
		p.MaxCrossingTime = cfg.MaxCrossingTime
	}
	if cfg.QuickStrikeWindow > 0 {
		p.QuickStrikeWindow = cfg.QuickStrikeWindow
	}
	setInt(&p.StrikeLeadFrames, cfg.StrikeLeadFrames)
	setInt(&p.MaxSteps, cfg.MaxSteps)
	setInt(&p.SmoothingDepth, cfg.SmoothingDepth)
	p.HistoryCapacity = cfg.HistoryCapacity
	p.EvictBatch = cfg.EvictBatch

	p.TargetX = c.TargetX
	p.FieldTop = c.FieldTop
	p.FieldBottom = c.FieldBottom
	setInt(&p.FrameRate, c.FrameRate)
	setFloat(&p.BallRadius, c.BallRadius)
	setFloat(&p.StrikeZoneThreshold, c.StrikeZoneThreshold)

	if err := p.Validate(); err != nil {
		return prediction.Params{}, err
	}
	return p, nil
}

// Save writes the snapshot as YAML.
func (c *Calibration) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode calibration: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func setFloat(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}
