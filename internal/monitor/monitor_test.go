package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foosbot/goalkeeper/internal/config"
	"github.com/foosbot/goalkeeper/internal/storage/memory"
	"github.com/foosbot/goalkeeper/internal/worker"
	"github.com/foosbot/goalkeeper/pkg/core"
)

var t0 = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

type fakeState struct{ state, session string }

func (f fakeState) StateName() string { return f.state }
func (f fakeState) SessionID() string { return f.session }

type fakeStats struct{ stats worker.Stats }

func (f fakeStats) Stats() worker.Stats { return f.stats }

type fakeInflux struct {
	mu    sync.Mutex
	snaps []core.StatusSnapshot
	err   error
}

func (f *fakeInflux) WriteStatus(s core.StatusSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps = append(f.snaps, s)
	return f.err
}

func (f *fakeInflux) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snaps)
}

func newService(t *testing.T, deps Dependencies) *Service {
	t.Helper()
	if deps.State == nil {
		deps.State = fakeState{state: "running", session: "s1"}
	}
	deps.Now = func() time.Time { return t0 }
	return NewService(deps)
}

func TestSnapshot(t *testing.T) {
	s := newService(t, Dependencies{
		Depths:   func() map[string]int { return map[string]int{"updates": 2} },
		Workers:  fakeStats{worker.Stats{Fps: 58, StrikesAllowed: 3, StrikesDropped: 1}},
		Encoders: func() core.EncoderValues { return core.EncoderValues{Linear: 667, LinearMM: 51.3} },
	})

	snap := s.Snapshot()
	assert.Equal(t, core.StatusSnapshot{
		SessionID:      "s1",
		Time:           t0,
		State:          "running",
		Fps:            58,
		MailboxDepths:  map[string]int{"updates": 2},
		Encoders:       core.EncoderValues{Linear: 667, LinearMM: 51.3},
		StrikesAllowed: 3,
		StrikesDropped: 1,
	}, snap)
}

func TestSnapshot_Minimal(t *testing.T) {
	s := newService(t, Dependencies{State: fakeState{state: "stopped"}})
	snap := s.Snapshot()
	assert.Equal(t, "stopped", snap.State)
	assert.Empty(t, snap.SessionID)
	assert.NotNil(t, snap.MailboxDepths)
}

func TestCapture_WritesAllSinks(t *testing.T) {
	dir := t.TempDir()
	statusFile := filepath.Join(dir, "logs", "status.json")
	mem := memory.New(config.MemoryConfig{OutputDir: dir})
	require.NoError(t, mem.Init())
	require.NoError(t, mem.StartSession(&core.Session{ID: "s1", StartedAt: t0}))
	influx := &fakeInflux{}

	s := newService(t, Dependencies{Backend: mem, Influx: influx, StatusFile: statusFile})
	s.Capture()
	s.Capture()

	_, _, _, status := mem.Counts()
	assert.Equal(t, 2, status)
	assert.Equal(t, 2, influx.count())

	body, err := os.ReadFile(statusFile)
	require.NoError(t, err)
	var got core.StatusSnapshot
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "running", got.State)
	assert.Equal(t, "s1", got.SessionID)
}

func TestCapture_SinkFailureDoesNotStopOthers(t *testing.T) {
	influx := &fakeInflux{err: errors.New("unreachable")}
	statusFile := filepath.Join(t.TempDir(), "status.json")

	s := newService(t, Dependencies{Influx: influx, StatusFile: statusFile})
	s.Capture()

	assert.Equal(t, 1, influx.count())
	assert.FileExists(t, statusFile)
}

func TestStartStop(t *testing.T) {
	influx := &fakeInflux{}
	s := newService(t, Dependencies{Influx: influx, Interval: 5 * time.Millisecond})

	s.Start(context.Background())
	s.Start(context.Background())
	assert.True(t, s.IsRunning())

	assert.Eventually(t, func() bool { return influx.count() >= 2 }, time.Second, time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	n := influx.count()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, influx.count())

	s.Stop()
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	s := newService(t, Dependencies{Interval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	assert.Eventually(t, func() bool { return !s.IsRunning() }, time.Second, time.Millisecond)
}
