// Package influx ships goalkeeper telemetry to InfluxDB. When the server
// cannot be reached, points are appended as line protocol to a gzip
// backup file instead.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/foosbot/goalkeeper/internal/config"
	"github.com/foosbot/goalkeeper/pkg/core"
)

// ErrDisabled is returned by Connect when influx is switched off.
var ErrDisabled = errors.New("influx is disabled")

// Measurement names.
const (
	MeasurementStatus = "goalkeeper_status"
	MeasurementStrike = "goalkeeper_strike"
)

// retention of the telemetry bucket
const retentionSeconds = 60 * 60 * 24 * 90

// Manager handles the InfluxDB connection and writes.
type Manager struct {
	cfg        config.InfluxConfig
	logger     zerolog.Logger
	backupPath string

	mu         sync.Mutex
	client     influxdb2.Client
	writer     influxdb2_api.WriteAPI
	backupFile *os.File
	backup     *gzip.Writer
	valid      bool
}

// NewManager creates a new InfluxDB manager.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		cfg:        cfg,
		logger:     log,
		backupPath: backupPath,
	}
}

// URL is the server address built from the configuration.
func (m *Manager) URL() string {
	return fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port)
}

// Connect establishes a connection to InfluxDB, falling back to the backup
// file when the server does not answer.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.client = influxdb2.NewClientWithOptions(
		m.URL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := m.client.Ping(ctx)
	if err != nil || !running {
		m.valid = false
		m.logger.Warn().Err(err).Str("backupPath", m.backupPath).
			Msg("InfluxDB unreachable, writing to backup file")
		return m.openBackup()
	}

	if err := m.ensureBucket(ctx); err != nil {
		return err
	}
	m.writer = m.client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(m.writer.Errors())

	m.valid = true
	m.logger.Info().Str("url", m.URL()).Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.backup != nil {
		return nil
	}
	if m.backupPath == "" {
		return fmt.Errorf("influx backup path not set")
	}
	if err := os.MkdirAll(filepath.Dir(m.backupPath), 0755); err != nil {
		return fmt.Errorf("error creating backup directory: %w", err)
	}
	file, err := os.OpenFile(m.backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.backup = gzip.NewWriter(file)
	return nil
}

func (m *Manager) ensureBucket(ctx context.Context) error {
	orgs := m.client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.logger.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			m.logger.Error().Err(err).Str("org", m.cfg.Org).Msg("Error creating organization")
			return err
		}
	}

	if _, err := m.client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err == nil {
		return nil
	}
	m.logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")
	rule := domain.RetentionRuleTypeExpire
	_, err = m.client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: retentionSeconds,
	})
	if err != nil {
		m.logger.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("Error creating bucket")
		return err
	}
	return nil
}

// Valid reports whether points go to the server rather than the backup.
func (m *Manager) Valid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid {
		m.writer.WritePoint(point)
		return nil
	}
	if m.backup == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	if _, err := m.backup.Write([]byte(line)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// WriteStatus records a status snapshot.
func (m *Manager) WriteStatus(s core.StatusSnapshot) error {
	return m.WritePoint(StatusPoint(s))
}

// WriteStrike records a strike event.
func (m *Manager) WriteStrike(e core.StrikeEvent) error {
	return m.WritePoint(StrikePoint(e))
}

// Close flushes pending points and releases the client and backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writer != nil {
		m.writer.Flush()
	}
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
	m.valid = false

	var errs []error
	if m.backup != nil {
		errs = append(errs, m.backup.Close())
		m.backup = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}

// StatusPoint converts a snapshot into a point. Mailbox depths become
// depth_<mailbox> fields.
func StatusPoint(s core.StatusSnapshot) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementStatus).
		AddTag("state", s.State).
		AddField("fps", s.Fps).
		AddField("strikes_allowed", s.StrikesAllowed).
		AddField("strikes_dropped", s.StrikesDropped).
		AddField("encoder_linear", s.Encoders.Linear).
		AddField("encoder_rotational", s.Encoders.Rotational).
		AddField("linear_mm", s.Encoders.LinearMM).
		AddField("rotation_deg", s.Encoders.RotationDeg).
		SetTime(s.Time)
	if s.SessionID != "" {
		p.AddTag("session", s.SessionID)
	}

	names := make([]string, 0, len(s.MailboxDepths))
	for name := range s.MailboxDepths {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p.AddField("depth_"+name, s.MailboxDepths[name])
	}
	return p
}

// StrikePoint converts a strike event into a point.
func StrikePoint(e core.StrikeEvent) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementStrike).
		AddTag("kind", string(e.Kind)).
		AddTag("source", e.Source).
		AddField("executed", e.Executed).
		AddField("duration_ms", float64(e.Duration.Microseconds())/1000).
		SetTime(e.Time)
	if e.SessionID != "" {
		p.AddTag("session", e.SessionID)
	}
	return p
}

// StrikeRecorder adapts a Manager to the storage backend interface so
// strike events reach InfluxDB alongside the regular recorders. Status
// points are written by the monitor and positions are not sent at all.
type StrikeRecorder struct {
	m *Manager
}

// Strikes returns a recorder writing strike events through m.
func (m *Manager) Strikes() *StrikeRecorder {
	return &StrikeRecorder{m: m}
}

func (r *StrikeRecorder) Init() error  { return nil }
func (r *StrikeRecorder) Close() error { return nil }

func (r *StrikeRecorder) StartSession(*core.Session) error { return nil }
func (r *StrikeRecorder) EndSession(*core.Session) error   { return nil }

func (r *StrikeRecorder) RecordBallPosition(*core.BallPosition) error { return nil }
func (r *StrikeRecorder) RecordPrediction(*core.Prediction) error     { return nil }
func (r *StrikeRecorder) RecordStatus(*core.StatusSnapshot) error     { return nil }

func (r *StrikeRecorder) RecordStrike(e *core.StrikeEvent) error {
	return r.m.WriteStrike(*e)
}
