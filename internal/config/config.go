package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "goalkeeper.cfg.json"

// PredictorConfig holds tuning of the trajectory predictor. Field geometry
// comes from the calibration snapshot, not from here.
type PredictorConfig struct {
	BallRadius          float64
	FrameRate           int
	Damping             float64
	Restitution         float64
	SpeedThreshold      float64
	StrikeZoneThreshold float64
	MaxCrossingTime     time.Duration
	QuickStrikeWindow   time.Duration
	StrikeLeadFrames    int
	MaxSteps            int
	SmoothingDepth      int
	HistoryCapacity     int
	EvictBatch          int
}

// MotorConfig holds actuator timings.
type MotorConfig struct {
	StrikeCooldown     time.Duration
	ManagerInterval    time.Duration
	ControllerInterval time.Duration
	SpinTimeout        time.Duration
	HomeTimeout        time.Duration
}

// HardwareConfig addresses the motor controller. It is read from the
// environment rather than the config file.
type HardwareConfig struct {
	Driver string `env:"MOTOR_DRIVER" envDefault:"sim"`
	Port   string `env:"SERIAL_PORT"`
	Baud   int    `env:"SERIAL_BAUD" envDefault:"38400"`
}

// CameraConfig selects the frame source of the vision worker.
type CameraConfig struct {
	Source       string // synthetic | replay
	ReplayFile   string
	DropRate     float64
	Seed         uint64
	Paced        bool
	IdleInterval time.Duration
	MoveDeadband float64
}

// OrchestratorConfig holds the router loop timings.
type OrchestratorConfig struct {
	TickInterval      time.Duration
	HeartbeatInterval time.Duration
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// TextLogConfig holds the append-only position log settings.
type TextLogConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
}

// DBConfig holds Postgres connection settings.
type DBConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// StorageConfig selects and configures the storage backends.
type StorageConfig struct {
	// Types lists the enabled backends; more than one fans out.
	Types   []string
	Async   bool
	TextLog TextLogConfig
	Memory  MemoryConfig
	SQLite  SQLiteConfig
	DB      DBConfig
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// InfluxConfig holds InfluxDB connection settings.
type InfluxConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Protocol string
	Token    string
	Org      string
	Bucket   string
}

// MQTTConfig holds the optional MQTT bridge settings.
type MQTTConfig struct {
	Enabled     bool
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
}

// APIConfig holds the HTTP control surface settings.
type APIConfig struct {
	Enabled bool
	Listen  string
}

// MonitorConfig holds the status monitor settings.
type MonitorConfig struct {
	Interval   time.Duration
	StatusFile string
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")
	viper.SetDefault("calibrationFile", "./calibration.yaml")

	viper.SetDefault("predictor.ballRadius", 17.5)
	viper.SetDefault("predictor.frameRate", 60)
	viper.SetDefault("predictor.damping", 0.9)
	viper.SetDefault("predictor.restitution", 0.5)
	viper.SetDefault("predictor.speedThreshold", 50.0)
	viper.SetDefault("predictor.strikeZoneThreshold", 50.0)
	viper.SetDefault("predictor.maxCrossingTime", "600ms")
	viper.SetDefault("predictor.quickStrikeWindow", "100ms")
	viper.SetDefault("predictor.strikeLeadFrames", 10)
	viper.SetDefault("predictor.maxSteps", 1000)
	viper.SetDefault("predictor.smoothingDepth", 10)
	viper.SetDefault("predictor.historyCapacity", 60)
	viper.SetDefault("predictor.evictBatch", 10)

	viper.SetDefault("motor.strikeCooldown", "1s")
	viper.SetDefault("motor.managerInterval", "10ms")
	viper.SetDefault("motor.controllerInterval", "1ms")
	viper.SetDefault("motor.spinTimeout", "2s")
	viper.SetDefault("motor.homeTimeout", "15s")

	viper.SetDefault("camera.source", "synthetic")
	viper.SetDefault("camera.replayFile", "")
	viper.SetDefault("camera.dropRate", 0.05)
	viper.SetDefault("camera.seed", 1)
	viper.SetDefault("camera.paced", true)
	viper.SetDefault("camera.idleInterval", "5ms")
	viper.SetDefault("camera.moveDeadband", 10.0)

	viper.SetDefault("orchestrator.tickInterval", "5ms")
	viper.SetDefault("orchestrator.heartbeatInterval", "1s")

	viper.SetDefault("storage.types", []string{"textlog"})
	viper.SetDefault("storage.async", true)
	viper.SetDefault("storage.textlog.path", "./logs/positions.txt")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.dumpPath", "./recordings/goalkeeper.db")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "goalkeeper")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "goalkeeper")
	viper.SetDefault("influx.bucket", "goalkeeper")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "goalkeeper")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.clientId", "goalkeeper")
	viper.SetDefault("mqtt.topicPrefix", "goalkeeper")
	viper.SetDefault("mqtt.qos", 0)

	viper.SetDefault("api.enabled", true)
	viper.SetDefault("api.listen", "127.0.0.1:8080")

	viper.SetDefault("monitor.interval", "1s")
	viper.SetDefault("monitor.statusFile", "./logs/status.json")
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetPredictorConfig returns the predictor tuning.
func GetPredictorConfig() PredictorConfig {
	return PredictorConfig{
		BallRadius:          viper.GetFloat64("predictor.ballRadius"),
		FrameRate:           viper.GetInt("predictor.frameRate"),
		Damping:             viper.GetFloat64("predictor.damping"),
		Restitution:         viper.GetFloat64("predictor.restitution"),
		SpeedThreshold:      viper.GetFloat64("predictor.speedThreshold"),
		StrikeZoneThreshold: viper.GetFloat64("predictor.strikeZoneThreshold"),
		MaxCrossingTime:     viper.GetDuration("predictor.maxCrossingTime"),
		QuickStrikeWindow:   viper.GetDuration("predictor.quickStrikeWindow"),
		StrikeLeadFrames:    viper.GetInt("predictor.strikeLeadFrames"),
		MaxSteps:            viper.GetInt("predictor.maxSteps"),
		SmoothingDepth:      viper.GetInt("predictor.smoothingDepth"),
		HistoryCapacity:     viper.GetInt("predictor.historyCapacity"),
		EvictBatch:          viper.GetInt("predictor.evictBatch"),
	}
}

// GetMotorConfig returns the actuator timings.
func GetMotorConfig() MotorConfig {
	return MotorConfig{
		StrikeCooldown:     viper.GetDuration("motor.strikeCooldown"),
		ManagerInterval:    viper.GetDuration("motor.managerInterval"),
		ControllerInterval: viper.GetDuration("motor.controllerInterval"),
		SpinTimeout:        viper.GetDuration("motor.spinTimeout"),
		HomeTimeout:        viper.GetDuration("motor.homeTimeout"),
	}
}

// GetHardwareConfig parses the motor controller address from the
// environment.
func GetHardwareConfig() (HardwareConfig, error) {
	var hw HardwareConfig
	if err := env.Parse(&hw); err != nil {
		return HardwareConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return hw, nil
}

// GetCameraConfig returns the frame source settings.
func GetCameraConfig() CameraConfig {
	return CameraConfig{
		Source:       viper.GetString("camera.source"),
		ReplayFile:   viper.GetString("camera.replayFile"),
		DropRate:     viper.GetFloat64("camera.dropRate"),
		Seed:         viper.GetUint64("camera.seed"),
		Paced:        viper.GetBool("camera.paced"),
		IdleInterval: viper.GetDuration("camera.idleInterval"),
		MoveDeadband: viper.GetFloat64("camera.moveDeadband"),
	}
}

// GetOrchestratorConfig returns the router loop timings.
func GetOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		TickInterval:      viper.GetDuration("orchestrator.tickInterval"),
		HeartbeatInterval: viper.GetDuration("orchestrator.heartbeatInterval"),
	}
}

// GetStorageConfig returns the storage configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Types: viper.GetStringSlice("storage.types"),
		Async: viper.GetBool("storage.async"),
		TextLog: TextLogConfig{
			Path: viper.GetString("storage.textlog.path"),
		},
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		},
		DB: DBConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the InfluxDB configuration.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetMQTTConfig returns the MQTT bridge configuration.
func GetMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Enabled:     viper.GetBool("mqtt.enabled"),
		Broker:      viper.GetString("mqtt.broker"),
		ClientID:    viper.GetString("mqtt.clientId"),
		TopicPrefix: viper.GetString("mqtt.topicPrefix"),
		QoS:         byte(viper.GetUint("mqtt.qos")),
	}
}

// GetAPIConfig returns the HTTP control surface configuration.
func GetAPIConfig() APIConfig {
	return APIConfig{
		Enabled: viper.GetBool("api.enabled"),
		Listen:  viper.GetString("api.listen"),
	}
}

// GetMonitorConfig returns the status monitor configuration.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:   viper.GetDuration("monitor.interval"),
		StatusFile: viper.GetString("monitor.statusFile"),
	}
}
