package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/foosbot/goalkeeper/internal/config"
	"github.com/foosbot/goalkeeper/internal/database"
	"github.com/foosbot/goalkeeper/internal/fault"
	"github.com/foosbot/goalkeeper/internal/logging"
	"github.com/foosbot/goalkeeper/internal/motor"
	intOtel "github.com/foosbot/goalkeeper/internal/otel"
)

const ExtensionName = "goalkeeper"

// Environment locates the config file.
type Environment struct {
	ConfigDir string `env:"GOALKEEPER_CONFIG_DIR" envDefault:"."`
}

var (
	SessionStartTime = time.Now()

	SlogManager  *logging.SlogManager
	Logger       *slog.Logger
	LogFile      *os.File
	LogFilePath  string
	OTelProvider *intOtel.Provider
)

// setupLogging loads the config and moves logging from the console to the
// log file, adding the OTel and Graylog sinks when enabled. serve extends
// the returned options with the state context.
func setupLogging(environment Environment) logging.Options {
	SlogManager = logging.NewSlogManager()
	opts := logging.Options{Level: "info", Console: os.Stderr}
	SlogManager.Setup(opts)
	Logger = SlogManager.Logger()

	if err := config.Load(environment.ConfigDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "dir", environment.ConfigDir)
	}
	opts.Level = config.GetString("logLevel")

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		Logger.Error("Failed to create logs directory", "error", err, "path", logsDir)
	}

	LogFilePath = logging.LogFilePath(logsDir, ExtensionName, SessionStartTime)

	// keep a previous log of the same second
	if _, err := os.Stat(LogFilePath); err == nil {
		os.Rename(LogFilePath, LogFilePath+".old")
	}

	var err error
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", LogFilePath)
		LogFile = nil
	} else {
		opts.File = LogFile
		Logger.Info("Begin logging in logs directory", "path", LogFilePath)
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		var otelWriter io.Writer = io.Discard
		if LogFile != nil {
			otelWriter = LogFile
		}
		OTelProvider, err = intOtel.New(otelCfg, otelWriter)
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else if otelCfg.Endpoint != "" {
			Logger.Info("OTel provider initialized", "file", LogFilePath, "endpoint", otelCfg.Endpoint)
		} else {
			Logger.Info("OTel provider initialized", "file", LogFilePath)
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	opts.Provider = otelLogProvider

	if config.GetBool("graylog.enabled") {
		addr := config.GetString("graylog.address")
		gw, err := logging.NewGraylogWriter(addr)
		if err != nil {
			Logger.Error("Failed to set up Graylog", "error", err, "address", addr)
		} else {
			opts.Graylog = gw
			Logger.Info("Sending logs to Graylog", "address", addr)
		}
	}

	SlogManager.Setup(opts)
	Logger = SlogManager.Logger()
	if OTelProvider != nil {
		OTelProvider.ReportErrors(Logger)
	}
	return opts
}

func shutdownLogging() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := SlogManager.Flush(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to flush logs: %v\n", err)
	}
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to shut down OTel provider: %v\n", err)
		}
	}
	if LogFile != nil {
		LogFile.Close()
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s [command]

Commands:
  run       start the goalkeeper (default)
  check     validate config, calibration and motor driver, then exit
  setupdb   migrate the Postgres schema
  drivers   list the available motor drivers
`, filepath.Base(os.Args[0]))
}

func main() {
	os.Exit(run())
}

func run() int {
	var environment Environment
	if err := env.Parse(&environment); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse environment: %v\n", err)
		return 2
	}

	command := "run"
	if len(os.Args) > 1 {
		command = strings.ToLower(os.Args[1])
	}

	switch command {
	case "drivers":
		for _, name := range motor.Drivers() {
			fmt.Println(name)
		}
		return 0
	case "help", "-h", "--help":
		usage()
		return 0
	case "run", "check", "setupdb":
	default:
		usage()
		return 2
	}

	opts := setupLogging(environment)
	defer shutdownLogging()

	var err error
	switch command {
	case "check":
		var hw *hardware
		hw, err = prepare()
		if err == nil {
			hw.driver.Close()
			Logger.Info("Configuration OK")
		}
	case "setupdb":
		err = setupDB()
		if err == nil {
			Logger.Info("DB setup complete.")
		}
	default:
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		err = serve(ctx, opts)
	}

	if err != nil {
		if errors.Is(err, fault.ErrConfiguration) {
			Logger.Error("Startup aborted", "error", err)
			return 3
		}
		Logger.Error("Exited with error", "error", err)
		return 1
	}
	return 0
}

func setupDB() error {
	db, err := database.GetPostgresDB(config.GetStorageConfig().DB)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}
	return database.Setup(db)
}
