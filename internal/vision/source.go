package vision

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/foosbot/goalkeeper/pkg/core"
)

// FrameSource delivers one observation per camera frame. Next blocks until
// the next frame is available and returns io.EOF when the stream ends.
type FrameSource interface {
	Next(ctx context.Context) (core.Observation, error)
	Close() error
}

// ReplaySource replays a position log, one "x,y" line per frame. Blank
// lines are frames without a detection.
type ReplaySource struct {
	sc     *bufio.Scanner
	closer io.Closer
	line   int
}

// NewReplaySource reads from r. If r is an io.Closer it is closed by Close.
func NewReplaySource(r io.Reader) *ReplaySource {
	s := &ReplaySource{sc: bufio.NewScanner(r)}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func (s *ReplaySource) Next(ctx context.Context) (core.Observation, error) {
	if err := ctx.Err(); err != nil {
		return core.Observation{}, err
	}
	if !s.sc.Scan() {
		if err := s.sc.Err(); err != nil {
			return core.Observation{}, err
		}
		return core.Observation{}, io.EOF
	}
	s.line++
	return ParsePosition(s.sc.Text())
}

func (s *ReplaySource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// PacedSource delivers the frames of another source no faster than the
// frame rate.
type PacedSource struct {
	src    FrameSource
	ticker *time.Ticker
}

// NewPacedSource paces src at frameRate frames per second.
func NewPacedSource(src FrameSource, frameRate int) *PacedSource {
	if frameRate <= 0 {
		frameRate = 60
	}
	return &PacedSource{src: src, ticker: time.NewTicker(time.Second / time.Duration(frameRate))}
}

func (s *PacedSource) Next(ctx context.Context) (core.Observation, error) {
	select {
	case <-ctx.Done():
		return core.Observation{}, ctx.Err()
	case <-s.ticker.C:
	}
	return s.src.Next(ctx)
}

func (s *PacedSource) Close() error {
	s.ticker.Stop()
	return s.src.Close()
}

// ParsePosition parses one position log line.
func ParsePosition(line string) (core.Observation, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return core.Missing(), nil
	}
	xs, ys, ok := strings.Cut(line, ",")
	if !ok {
		return core.Observation{}, fmt.Errorf("invalid position %q: want x,y", line)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return core.Observation{}, fmt.Errorf("invalid x in %q: %w", line, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return core.Observation{}, fmt.Errorf("invalid y in %q: %w", line, err)
	}
	return core.Detected(x, y), nil
}

// SyntheticConfig describes the simulated table of a SyntheticSource.
type SyntheticConfig struct {
	FrameRate   int
	TargetX     float64
	FieldTop    float64
	FieldBottom float64
	// DropRate is the probability that a frame has no detection.
	DropRate float64
	// Paced makes Next wait for the frame interval.
	Paced bool
	Seed  uint64
}

// SyntheticSource generates repeated shots at the goal with wall bounces
// and occasional detection gaps.
type SyntheticSource struct {
	cfg    SyntheticConfig
	rng    *rand.Rand
	ticker *time.Ticker
	pos    core.Point
	vel    core.Point
}

// NewSyntheticSource creates a source for cfg.
func NewSyntheticSource(cfg SyntheticConfig) *SyntheticSource {
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 60
	}
	s := &SyntheticSource{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
	if cfg.Paced {
		s.ticker = time.NewTicker(time.Second / time.Duration(cfg.FrameRate))
	}
	s.shoot()
	return s
}

func (s *SyntheticSource) shoot() {
	width := s.cfg.FieldBottom - s.cfg.FieldTop
	s.pos = core.Point{X: s.cfg.TargetX * 0.1, Y: s.cfg.FieldTop + width*s.rng.Float64()}
	speed := 6 + 10*s.rng.Float64()
	angle := (s.rng.Float64() - 0.5) * math.Pi / 2
	s.vel = core.Point{X: speed * math.Cos(angle), Y: speed * math.Sin(angle)}
}

func (s *SyntheticSource) Next(ctx context.Context) (core.Observation, error) {
	if s.ticker != nil {
		select {
		case <-ctx.Done():
			return core.Observation{}, ctx.Err()
		case <-s.ticker.C:
		}
	} else if err := ctx.Err(); err != nil {
		return core.Observation{}, err
	}

	s.pos = s.pos.Add(s.vel)
	if s.pos.Y < s.cfg.FieldTop || s.pos.Y > s.cfg.FieldBottom {
		s.pos.Y = math.Max(s.cfg.FieldTop, math.Min(s.cfg.FieldBottom, s.pos.Y))
		s.vel.Y = -s.vel.Y * 0.8
	}
	s.vel = s.vel.Scale(0.995)
	if s.pos.X >= s.cfg.TargetX || s.vel.X < 0.5 {
		s.shoot()
	}
	if s.rng.Float64() < s.cfg.DropRate {
		return core.Missing(), nil
	}
	return core.Observation{Point: s.pos, Detected: true}, nil
}

func (s *SyntheticSource) Close() error {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	return nil
}
