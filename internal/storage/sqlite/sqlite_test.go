package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/foosbot/goalkeeper/internal/config"
	"github.com/foosbot/goalkeeper/internal/model"
	"github.com/foosbot/goalkeeper/pkg/core"
)

func newTestBackend(t *testing.T, cfg Config) *Backend {
	t.Helper()
	cfg.DSN = "file:" + t.Name() + "?mode=memory&cache=shared"
	b, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	return b
}

func countRows(t *testing.T, path string, m any) int64 {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	var n int64
	require.NoError(t, db.Model(m).Count(&n).Error)
	return n
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.SQLiteConfig{DumpInterval: time.Minute, DumpPath: "/tmp/x.db"})
	assert.Equal(t, Config{DumpInterval: time.Minute, DumpPath: "/tmp/x.db"}, cfg)
}

func TestEndSession_DumpsToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "goalkeeper.db")
	b := newTestBackend(t, Config{DumpPath: path})
	defer b.Close()

	s := &core.Session{ID: "s1", StartedAt: time.Now()}
	require.NoError(t, b.StartSession(s))
	require.NoError(t, b.RecordBallPosition(&core.BallPosition{SessionID: "s1", Time: time.Now(), Frame: 1, Position: core.Point{X: 1, Y: 2}}))
	s.EndedAt = time.Now()
	require.NoError(t, b.EndSession(s))

	require.FileExists(t, path)
	assert.Equal(t, int64(1), countRows(t, path, &model.Session{}))
	assert.Equal(t, int64(1), countRows(t, path, &model.BallPosition{}))
	assert.Equal(t, path, b.GetExportedFilePath())
}

func TestDumpLoop_OverwritesPreviousDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goalkeeper.db")
	b := newTestBackend(t, Config{DumpPath: path, DumpInterval: 10 * time.Millisecond})

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, b.Close())
	require.FileExists(t, path)
}

func TestWithoutDumpPath(t *testing.T) {
	b := newTestBackend(t, Config{})
	require.NoError(t, b.Dump())
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}

func TestClose_WithoutInit(t *testing.T) {
	b, err := New(Config{DSN: "file:" + t.Name() + "?mode=memory&cache=shared"}, nil)
	require.NoError(t, err)
	assert.NoError(t, b.Close())
}
