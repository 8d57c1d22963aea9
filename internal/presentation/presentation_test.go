package presentation

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foosbot/goalkeeper/internal/channel"
	"github.com/foosbot/goalkeeper/internal/message"
	"github.com/foosbot/goalkeeper/pkg/core"
)

var t0 = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

type collector struct {
	mu   sync.Mutex
	envs []Envelope
}

func (c *collector) Publish(env Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.envs = append(c.envs, env)
}

func (c *collector) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.envs))
	for i, e := range c.envs {
		out[i] = e.Type
	}
	return out
}

func newTestPublisher() (*Publisher, *channel.Mailbox[message.Update]) {
	mb := channel.New[message.Update]()
	return NewPublisher(mb, WithClock(func() time.Time { return t0 })), mb
}

func TestEncode(t *testing.T) {
	tests := []struct {
		update message.Update
		want   string
	}{
		{message.BallPos{Position: core.Point{X: 470, Y: 400}}, `{"type":"current_ball_pos","time":"2026-03-14T15:09:26Z","data":{"x":470,"y":400}}`},
		{message.PredictedPos{Y: 237.5, Path: core.Trajectory{{X: 420, Y: 330}, {X: 800, Y: 237.5}}}, `{"type":"predicted_ball_pos","time":"2026-03-14T15:09:26Z","data":{"y":237.5,"path":[[420,330],[800,237.5]],"reused":false}}`},
		{message.Fps{Value: 60}, `{"type":"fps","time":"2026-03-14T15:09:26Z","data":{"value":60}}`},
		{message.Status{State: "stopped"}, `{"type":"status","time":"2026-03-14T15:09:26Z","data":{"state":"stopped"}}`},
		{message.Error{Text: "Robot is at Stop state"}, `{"type":"error","time":"2026-03-14T15:09:26Z","data":{"text":"Robot is at Stop state"}}`},
	}
	for _, tt := range tests {
		t.Run(message.Name(tt.update), func(t *testing.T) {
			body, err := json.Marshal(Encode(tt.update, t0))
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(body))
		})
	}
}

func TestFlush_FansOutInOrder(t *testing.T) {
	p, mb := newTestPublisher()
	a, b := &collector{}, &collector{}
	p.Subscribe(a)
	p.Subscribe(b)

	mb.Send(message.Status{State: "running", SessionID: "s1"})
	mb.Send(message.BallPos{Position: core.Point{X: 1, Y: 2}})
	mb.Send(message.Fps{Value: 59})

	assert.Equal(t, 3, p.Flush())
	want := []string{"status", "current_ball_pos", "fps"}
	assert.Equal(t, want, a.types())
	assert.Equal(t, want, b.types())
	assert.Equal(t, 0, p.Flush())
}

func TestUnsubscribe(t *testing.T) {
	p, mb := newTestPublisher()
	c := &collector{}
	unsubscribe := p.Subscribe(c)
	assert.Equal(t, 1, p.Subscribers())

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, p.Subscribers())

	mb.Send(message.Fps{Value: 1})
	p.Flush()
	assert.Empty(t, c.types())
}

func TestLatestAndEncoders(t *testing.T) {
	p, mb := newTestPublisher()
	mb.Send(message.Encoders{Values: core.EncoderValues{Linear: 100}})
	mb.Send(message.Encoders{Values: core.EncoderValues{Linear: 667, LinearMM: 51.3}})
	mb.Send(message.Fps{Value: 60})
	p.Flush()

	assert.Equal(t, core.EncoderValues{Linear: 667, LinearMM: 51.3}, p.LastEncoders())
	latest := p.Latest()
	require.Contains(t, latest, "encoder_vals")
	assert.Equal(t, core.EncoderValues{Linear: 667, LinearMM: 51.3}, latest["encoder_vals"].Data)
	assert.Contains(t, latest, "fps")
}

func TestRun_FlushesUntilCancelled(t *testing.T) {
	mb := channel.New[message.Update]()
	p := NewPublisher(mb, WithInterval(time.Millisecond))
	var got []string
	var mu sync.Mutex
	p.Subscribe(SubscriberFunc(func(e Envelope) {
		mu.Lock()
		got = append(got, e.Type)
		mu.Unlock()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	mb.Send(message.Error{Text: "boom"})
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
