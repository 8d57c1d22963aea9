// Package gormstorage records sessions through GORM. Sessions are written
// synchronously; ball positions, predictions, strikes and status snapshots
// are queued and written in batches by a background DB writer goroutine.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/foosbot/goalkeeper/internal/channel"
	"github.com/foosbot/goalkeeper/internal/database"
	"github.com/foosbot/goalkeeper/internal/model"
	"github.com/foosbot/goalkeeper/internal/model/convert"
	"github.com/foosbot/goalkeeper/pkg/core"
)

// DefaultFlushInterval is how often queued rows are written.
const DefaultFlushInterval = 2 * time.Second

// ErrNoDatabase is returned by Init when no connection was supplied.
var ErrNoDatabase = errors.New("no database connection")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	FlushInterval time.Duration
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	BallPositions *channel.Mailbox[model.BallPosition]
	Predictions   *channel.Mailbox[model.Prediction]
	Strikes       *channel.Mailbox[model.Strike]
	Status        *channel.Mailbox[model.StatusSnapshot]
}

func newQueues() *queues {
	return &queues{
		BallPositions: channel.New[model.BallPosition](),
		Predictions:   channel.New[model.Prediction](),
		Strikes:       channel.New[model.Strike](),
		Status:        channel.New[model.StatusSnapshot](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps   Dependencies
	queues *queues
	logger *slog.Logger

	// writeMu serialises flushes between the writer goroutine and
	// EndSession/Close.
	writeMu           sync.Mutex
	lastWriteDuration atomic.Int64

	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		deps:   deps,
		queues: newQueues(),
		logger: logger.With("component", "storage.gorm"),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the schema and starts the DB writer.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return ErrNoDatabase
	}
	if err := database.Setup(b.deps.DB); err != nil {
		return err
	}
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writerLoop()
	return nil
}

// Close stops the writer after a final flush.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	b.stopOnce.Do(func() {
		close(b.stopChan)
		<-b.done
	})
	b.flush()
	return nil
}

// StartSession inserts the session row synchronously so queued rows can
// reference it.
func (b *Backend) StartSession(s *core.Session) error {
	row := convert.CoreToSession(*s)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// EndSession flushes pending rows and stamps the end of the session.
func (b *Backend) EndSession(s *core.Session) error {
	b.flush()
	row := convert.CoreToSession(*s)
	err := b.deps.DB.Model(&model.Session{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{"ended_at": row.EndedAt, "reason": row.Reason}).Error
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// RecordBallPosition converts and queues a ball position.
func (b *Backend) RecordBallPosition(p *core.BallPosition) error {
	b.queues.BallPositions.Send(convert.CoreToBallPosition(*p))
	return nil
}

// RecordPrediction converts and queues a prediction.
func (b *Backend) RecordPrediction(p *core.Prediction) error {
	b.queues.Predictions.Send(convert.CoreToPrediction(*p))
	return nil
}

// RecordStrike converts and queues a strike.
func (b *Backend) RecordStrike(e *core.StrikeEvent) error {
	b.queues.Strikes.Send(convert.CoreToStrike(*e))
	return nil
}

// RecordStatus converts and queues a status snapshot, stamped with the
// duration of the previous flush.
func (b *Backend) RecordStatus(s *core.StatusSnapshot) error {
	row := convert.CoreToStatusSnapshot(*s)
	row.LastWriteDurationMs = float32(b.GetLastWriteDuration().Seconds() * 1000)
	b.queues.Status.Send(row)
	return nil
}

// GetLastWriteDuration reports how long the last flush took.
func (b *Backend) GetLastWriteDuration() time.Duration {
	return time.Duration(b.lastWriteDuration.Load())
}

// Pending returns the number of rows waiting to be written.
func (b *Backend) Pending() int {
	return b.queues.BallPositions.Len() + b.queues.Predictions.Len() +
		b.queues.Strikes.Len() + b.queues.Status.Len()
}

// writeQueue writes all items from a queue to the database in a transaction.
// On failure the items are put back for the next cycle.
func writeQueue[T any](db *gorm.DB, q *channel.Mailbox[T], name string, logger *slog.Logger) {
	items := q.Drain()
	if len(items) == 0 {
		return
	}

	tx := db.Begin()
	if err := tx.Create(&items).Error; err != nil {
		logger.Error("Error creating rows", "table", name, "count", len(items), "error", err)
		tx.Rollback()
		for _, item := range items {
			q.Send(item)
		}
		return
	}

	if err := tx.Commit().Error; err != nil {
		logger.Error("Error committing rows", "table", name, "count", len(items), "error", err)
	}
}

func (b *Backend) flush() {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	start := time.Now()
	writeQueue(b.deps.DB, b.queues.BallPositions, "ball_positions", b.logger)
	writeQueue(b.deps.DB, b.queues.Predictions, "predictions", b.logger)
	writeQueue(b.deps.DB, b.queues.Strikes, "strikes", b.logger)
	writeQueue(b.deps.DB, b.queues.Status, "status_snapshots", b.logger)
	b.lastWriteDuration.Store(int64(time.Since(start)))
}

// writerLoop periodically drains the queues into the DB.
func (b *Backend) writerLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.flush()
		}
	}
}
