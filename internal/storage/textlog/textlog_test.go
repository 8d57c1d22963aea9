package textlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foosbot/goalkeeper/internal/config"
	"github.com/foosbot/goalkeeper/internal/vision"
	"github.com/foosbot/goalkeeper/pkg/core"
)

func TestAppendsPositions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "positions.txt")
	b := New(config.TextLogConfig{Path: path})
	require.NoError(t, b.Init())

	require.NoError(t, b.StartSession(&core.Session{ID: "s"}))
	require.NoError(t, b.RecordBallPosition(&core.BallPosition{Position: core.Point{X: 470, Y: 400}}))
	require.NoError(t, b.RecordBallPosition(&core.BallPosition{Position: core.Point{X: 500.5, Y: 399.25}}))
	require.NoError(t, b.RecordPrediction(&core.Prediction{}))
	require.NoError(t, b.EndSession(&core.Session{ID: "s"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "470,400\n500.5,399.25\n", string(data))
	require.NoError(t, b.Close())
	assert.Equal(t, path, b.GetExportedFilePath())
}

func TestAppendsAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.txt")
	for _, p := range []core.Point{{X: 1, Y: 2}, {X: 3, Y: 4}} {
		b := New(config.TextLogConfig{Path: path})
		require.NoError(t, b.Init())
		require.NoError(t, b.RecordBallPosition(&core.BallPosition{Position: p}))
		require.NoError(t, b.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1,2\n3,4\n", string(data))
}

func TestLogReplaysThroughVision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.txt")
	b := New(config.TextLogConfig{Path: path})
	require.NoError(t, b.Init())
	require.NoError(t, b.RecordBallPosition(&core.BallPosition{Position: core.Point{X: 760, Y: 110}}))
	require.NoError(t, b.RecordStatus(&core.StatusSnapshot{}))

	f, err := os.Open(path)
	require.NoError(t, err)
	src := vision.NewReplaySource(f)
	defer src.Close()
	obs, err := src.Next(t.Context())
	require.NoError(t, err)
	assert.Equal(t, core.Detected(760, 110), obs)
	require.NoError(t, b.Close())
}

func TestErrors(t *testing.T) {
	assert.Error(t, New(config.TextLogConfig{}).Init())

	b := New(config.TextLogConfig{Path: filepath.Join(t.TempDir(), "p.txt")})
	assert.Error(t, b.RecordBallPosition(&core.BallPosition{}))
	assert.NoError(t, b.Flush())
	assert.NoError(t, b.Close())
}
