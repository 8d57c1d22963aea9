// Package vision is the camera worker. It feeds per-frame observations into
// the trajectory predictor and turns the results into camera events for the
// orchestrator.
package vision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/foosbot/goalkeeper/internal/channel"
	"github.com/foosbot/goalkeeper/internal/fault"
	"github.com/foosbot/goalkeeper/internal/message"
	"github.com/foosbot/goalkeeper/internal/prediction"
	"github.com/foosbot/goalkeeper/internal/state"
	"github.com/foosbot/goalkeeper/pkg/core"
)

// Recorder persists observations and accepted predictions for offline
// analysis.
type Recorder interface {
	RecordBallPosition(p *core.BallPosition) error
	RecordPrediction(p *core.Prediction) error
}

// Config tunes the camera worker.
type Config struct {
	// IdleInterval is the polling interval while waiting for StartTracking.
	IdleInterval time.Duration
	// FpsInterval is how often the frame rate is reported.
	FpsInterval time.Duration
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() Config {
	return Config{
		IdleInterval: 5 * time.Millisecond,
		FpsInterval:  time.Second,
	}
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// WithRecorder records positions and predictions of the given session.
func WithRecorder(r Recorder, sessionID string) Option {
	return func(w *Worker) {
		w.recorder = r
		w.sessionID = sessionID
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// Worker is the camera worker of one session.
type Worker struct {
	cfg       Config
	source    FrameSource
	predictor *prediction.Predictor
	in        channel.Receiver[message.CameraCommand]
	out       channel.Sender[message.CameraEvent]

	recorder  Recorder
	sessionID string
	now       func() time.Time
	logger    *slog.Logger

	lastFps atomic.Int64
	frame   uint64
}

// NewWorker creates a camera worker.
func NewWorker(cfg Config, source FrameSource, predictor *prediction.Predictor, in channel.Receiver[message.CameraCommand], out channel.Sender[message.CameraEvent], opts ...Option) *Worker {
	w := &Worker{
		cfg:       cfg,
		source:    source,
		predictor: predictor,
		in:        in,
		out:       out,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("worker", "camera")
	return w
}

// LastFps returns the most recently reported frame rate.
func (w *Worker) LastFps() int {
	return int(w.lastFps.Load())
}

// Run waits for StartTracking and then processes frames until stop is
// raised, ctx is cancelled or the source ends. Frame source failures are
// returned as actuator faults.
func (w *Worker) Run(ctx context.Context, stop state.StopChecker) error {
	w.logger.Info("Camera worker started")
	defer w.logger.Info("Camera worker stopped")

	started, err := w.awaitStart(ctx, stop)
	if err != nil || !started {
		return err
	}
	w.logger.Info("Ball tracking started")
	return w.track(ctx, stop)
}

func (w *Worker) awaitStart(ctx context.Context, stop state.StopChecker) (bool, error) {
	ticker := time.NewTicker(w.cfg.IdleInterval)
	defer ticker.Stop()
	for {
		if stop.Stopped() {
			return false, nil
		}
		for _, cmd := range w.in.Drain() {
			if _, ok := cmd.(message.StartTracking); ok {
				return true, nil
			}
		}
		select {
		case <-ctx.Done():
			return false, nil
		case <-stop.Done():
			return false, nil
		case <-ticker.C:
		}
	}
}

func (w *Worker) track(ctx context.Context, stop state.StopChecker) error {
	frames := 0
	fpsStart := w.now()

	for {
		if stop.Stopped() || ctx.Err() != nil {
			return nil
		}
		// Tracking is already running; repeated starts are no-ops.
		w.in.Drain()

		obs, err := w.source.Next(ctx)
		if errors.Is(err, io.EOF) {
			w.logger.Info("Frame source exhausted")
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fault.Actuator(fmt.Errorf("read frame: %w", err))
		}

		now := w.now()
		w.frame++
		frames++
		w.predictor.Add(obs)

		if obs.Detected {
			w.out.Send(message.BallPos{Position: obs.Point})
			w.recordPosition(now, obs.Point)
		}

		if est, ok := w.predictor.Estimate(); ok {
			w.out.Send(message.PredictedPos{Y: est.Y, Path: est.Path, Reused: est.Reused})
			w.recordPrediction(now, est)
			switch est.Advice {
			case prediction.AdviceStrike:
				w.out.Send(message.Strike{})
			case prediction.AdviceQuickStrike:
				w.out.Send(message.QuickStrike{})
			}
		}

		if elapsed := now.Sub(fpsStart); elapsed >= w.cfg.FpsInterval {
			fps := int(math.Round(float64(frames) / elapsed.Seconds()))
			w.lastFps.Store(int64(fps))
			w.out.Send(message.Fps{Value: fps})
			frames = 0
			fpsStart = now
		}
	}
}

func (w *Worker) recordPosition(now time.Time, p core.Point) {
	if w.recorder == nil {
		return
	}
	err := w.recorder.RecordBallPosition(&core.BallPosition{
		SessionID: w.sessionID,
		Time:      now,
		Frame:     w.frame,
		Position:  p,
	})
	if err != nil {
		w.logger.Warn("Failed to record ball position", "error", err)
	}
}

func (w *Worker) recordPrediction(now time.Time, est prediction.Estimate) {
	if w.recorder == nil {
		return
	}
	err := w.recorder.RecordPrediction(&core.Prediction{
		SessionID: w.sessionID,
		Time:      now,
		Frame:     w.frame,
		Kind:      est.Kind,
		Y:         est.Y,
		Path:      est.Path.Clone(),
		Reused:    est.Reused,
	})
	if err != nil {
		w.logger.Warn("Failed to record prediction", "error", err)
	}
}
