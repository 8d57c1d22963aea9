package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/foosbot/goalkeeper/internal/api"
	"github.com/foosbot/goalkeeper/internal/calibration"
	"github.com/foosbot/goalkeeper/internal/config"
	"github.com/foosbot/goalkeeper/internal/fault"
	"github.com/foosbot/goalkeeper/internal/influx"
	"github.com/foosbot/goalkeeper/internal/logging"
	"github.com/foosbot/goalkeeper/internal/monitor"
	"github.com/foosbot/goalkeeper/internal/motor"
	"github.com/foosbot/goalkeeper/internal/mqtt"
	"github.com/foosbot/goalkeeper/internal/orchestrator"
	"github.com/foosbot/goalkeeper/internal/prediction"
	"github.com/foosbot/goalkeeper/internal/presentation"
	"github.com/foosbot/goalkeeper/internal/storage"
	"github.com/foosbot/goalkeeper/internal/vision"
	"github.com/foosbot/goalkeeper/internal/worker"
)

// hardware is everything that must be in place before the run loop starts.
type hardware struct {
	driver      motor.Driver
	calibration *calibration.Calibration
	params      prediction.Params
}

// prepare loads calibration and connects to the motor controller. Any
// failure is a configuration error.
func prepare() (*hardware, error) {
	calPath := config.GetString("calibrationFile")
	cal, err := calibration.Load(calPath)
	if err != nil {
		return nil, err
	}
	params, err := cal.PredictorParams(config.GetPredictorConfig())
	if err != nil {
		return nil, err
	}
	Logger.Info("Loaded calibration", "path", calPath, "capturedAt", cal.CapturedAt, "targetX", params.TargetX)

	hwCfg, err := config.GetHardwareConfig()
	if err != nil {
		return nil, fault.Configuration(err)
	}
	driver, err := motor.Open(motor.HardwareConfig(hwCfg))
	if err != nil {
		return nil, err
	}
	Logger.Info("Motor driver connected", "driver", hwCfg.Driver, "port", hwCfg.Port)

	return &hardware{driver: driver, calibration: cal, params: params}, nil
}

func motorConfig(cfg config.MotorConfig) motor.Config {
	mc := motor.DefaultConfig()
	if cfg.StrikeCooldown > 0 {
		mc.StrikeCooldown = cfg.StrikeCooldown
	}
	if cfg.ManagerInterval > 0 {
		mc.Timing.ManagerInterval = cfg.ManagerInterval
	}
	if cfg.ControllerInterval > 0 {
		mc.Timing.ControllerInterval = cfg.ControllerInterval
	}
	if cfg.SpinTimeout > 0 {
		mc.Timing.SpinTimeout = cfg.SpinTimeout
	}
	if cfg.HomeTimeout > 0 {
		mc.Timing.HomeTimeout = cfg.HomeTimeout
	}
	return mc
}

func visionConfig(cfg config.CameraConfig) vision.Config {
	vc := vision.DefaultConfig()
	if cfg.IdleInterval > 0 {
		vc.IdleInterval = cfg.IdleInterval
	}
	return vc
}

// frameSource opens a new frame source per session.
func frameSource(cfg config.CameraConfig, params prediction.Params) func() (vision.FrameSource, error) {
	return func() (vision.FrameSource, error) {
		switch cfg.Source {
		case "replay":
			f, err := os.Open(cfg.ReplayFile)
			if err != nil {
				return nil, err
			}
			if cfg.Paced {
				return vision.NewPacedSource(vision.NewReplaySource(f), params.FrameRate), nil
			}
			return vision.NewReplaySource(f), nil
		case "synthetic", "":
			return vision.NewSyntheticSource(vision.SyntheticConfig{
				FrameRate:   params.FrameRate,
				TargetX:     params.TargetX,
				FieldTop:    params.FieldTop,
				FieldBottom: params.FieldBottom,
				DropRate:    cfg.DropRate,
				Paced:       cfg.Paced,
				Seed:        cfg.Seed,
			}), nil
		default:
			return nil, fmt.Errorf("unknown camera source %q", cfg.Source)
		}
	}
}

// serve wires the goalkeeper and runs it until ctx is cancelled.
func serve(ctx context.Context, logOpts logging.Options) error {
	hw, err := prepare()
	if err != nil {
		return err
	}

	Logger.Info("Initializing storage...")
	storageCfg := config.GetStorageConfig()
	backend, err := storage.NewBackend(storageCfg, Logger)
	if err != nil {
		hw.driver.Close()
		return err
	}

	influxLog := zerolog.New(influxLogWriter()).With().Timestamp().Str("component", "influx").Logger()
	influxManager := influx.NewManager(
		config.GetInfluxConfig(),
		influxLog,
		filepath.Join(config.GetString("logsDir"), "influx_backup.lp.gz"),
	)
	var statusWriter monitor.StatusWriter
	if err := influxManager.Connect(ctx); err != nil {
		Logger.Info("InfluxDB not used", "reason", err)
	} else {
		statusWriter = influxManager
		backend = storage.NewMulti(backend, influxManager.Strikes())
		Logger.Info("InfluxDB connected", "url", influxManager.URL(), "valid", influxManager.Valid())
	}
	defer influxManager.Close()

	if err := backend.Init(); err != nil {
		hw.driver.Close()
		return fault.Configuration(fmt.Errorf("failed to initialize storage backend: %w", err))
	}
	defer func() {
		if err := backend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
		if exp, ok := backend.(storage.Exportable); ok && exp.GetExportedFilePath() != "" {
			Logger.Info("Recording exported", "path", exp.GetExportedFilePath())
		}
	}()
	Logger.Info("Storage initialization complete.", "types", storageCfg.Types, "async", storageCfg.Async)

	bus := motor.NewBus(hw.driver)
	defer bus.Close()

	channels := orchestrator.NewChannels()
	camCfg := config.GetCameraConfig()
	workerManager := worker.NewManager(worker.Dependencies{
		Mailboxes: worker.Mailboxes{
			CameraCommands: channels.CameraCommands,
			CameraEvents:   channels.CameraEvents,
			MotorCommands:  channels.MotorCommands,
			MotorEvents:    channels.MotorEvents,
		},
		Bus:       bus,
		NewSource: frameSource(camCfg, hw.params),
		Predictor: hw.params,
		Motor:     motorConfig(config.GetMotorConfig()),
		Vision:    visionConfig(camCfg),
		Logger:    Logger,
	}, backend)

	orchCfg := config.GetOrchestratorConfig()
	orch, err := orchestrator.New(orchestrator.Config{
		TickInterval:      orchCfg.TickInterval,
		HeartbeatInterval: orchCfg.HeartbeatInterval,
		MoveDeadband:      camCfg.MoveDeadband,
	}, channels, workerManager,
		orchestrator.WithLogger(Logger),
		orchestrator.WithSessionRecorder(backend),
	)
	if err != nil {
		return err
	}

	// stamp state and session on every record from here on
	logOpts.Context = logging.StateContext(orch)
	SlogManager.Setup(logOpts)
	Logger = SlogManager.Logger()

	publisher := presentation.NewPublisher(channels.Updates, presentation.WithLogger(Logger))

	hub := api.NewHub(orch.Submit, Logger)
	publisher.Subscribe(hub)

	mqttCfg := config.GetMQTTConfig()
	if mqttCfg.Enabled {
		bridge := mqtt.NewBridge(mqttCfg, orch.Submit, Logger)
		if err := bridge.Connect(ctx); err != nil {
			Logger.Error("Failed to connect to MQTT broker", "error", err, "broker", mqttCfg.Broker)
		} else {
			publisher.Subscribe(bridge)
			defer bridge.Close()
		}
	}

	monCfg := config.GetMonitorConfig()
	monitorService := monitor.NewService(monitor.Dependencies{
		State:      orch,
		Depths:     channels.Depths,
		Workers:    workerManager,
		Encoders:   publisher.LastEncoders,
		Backend:    backend,
		Influx:     statusWriter,
		Logger:     Logger,
		StatusFile: monCfg.StatusFile,
		Interval:   monCfg.Interval,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return orch.Run(gctx) })
	g.Go(func() error { return publisher.Run(gctx) })
	apiCfg := config.GetAPIConfig()
	if apiCfg.Enabled {
		server := api.NewServer(apiCfg, orch, publisher, hub, Logger)
		g.Go(func() error { return server.Run(gctx) })
	}
	monitorService.Start(gctx)

	Logger.Info("Goalkeeper ready", "state", orch.StateName())
	err = g.Wait()

	monitorService.Stop()
	workerManager.Wait()
	Logger.Info("Shutting down", "error", err, "logSinkFailures", SlogManager.SinkFailures())
	return err
}

// influxLogWriter sends the InfluxDB client log to the log file when there
// is one.
func influxLogWriter() *os.File {
	if LogFile != nil {
		return LogFile
	}
	return os.Stderr
}
