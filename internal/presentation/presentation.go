// Package presentation drains the orchestrator's update mailbox and fans
// every update out to the live subscribers (websocket clients, MQTT).
package presentation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/foosbot/goalkeeper/internal/channel"
	"github.com/foosbot/goalkeeper/internal/message"
	"github.com/foosbot/goalkeeper/pkg/core"
)

// DefaultInterval is how often the update mailbox is drained.
const DefaultInterval = 10 * time.Millisecond

// Envelope is the wire form of an update.
type Envelope struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}

type predictedPayload struct {
	Y      float64     `json:"y"`
	Path   [][]float64 `json:"path"`
	Reused bool        `json:"reused"`
}

type fpsPayload struct {
	Value int `json:"value"`
}

type statusPayload struct {
	State     string `json:"state"`
	SessionID string `json:"sessionId,omitempty"`
}

type errorPayload struct {
	Text string `json:"text"`
}

// Encode converts u into its wire form.
func Encode(u message.Update, now time.Time) Envelope {
	env := Envelope{Type: message.Name(u), Time: now.UTC()}
	switch v := u.(type) {
	case message.Encoders:
		env.Data = v.Values
	case message.BallPos:
		env.Data = v.Position
	case message.PredictedPos:
		path := make([][]float64, len(v.Path))
		for i, p := range v.Path {
			path[i] = []float64{p.X, p.Y}
		}
		env.Data = predictedPayload{Y: v.Y, Path: path, Reused: v.Reused}
	case message.Fps:
		env.Data = fpsPayload{Value: v.Value}
	case message.Status:
		env.Data = statusPayload{State: v.State, SessionID: v.SessionID}
	case message.Error:
		env.Data = errorPayload{Text: v.Text}
	}
	return env
}

// Subscriber receives every published envelope. Publish must not block.
type Subscriber interface {
	Publish(env Envelope)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(Envelope)

func (f SubscriberFunc) Publish(env Envelope) { f(env) }

// Option configures a Publisher.
type Option func(*Publisher)

// WithInterval sets the drain interval.
func WithInterval(d time.Duration) Option {
	return func(p *Publisher) { p.interval = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// Publisher drains updates and fans them out.
type Publisher struct {
	updates  channel.Receiver[message.Update]
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.RWMutex
	nextID int
	subs   map[int]Subscriber
	last   map[string]Envelope
	enc    core.EncoderValues
}

// NewPublisher creates a publisher reading from updates.
func NewPublisher(updates channel.Receiver[message.Update], opts ...Option) *Publisher {
	p := &Publisher{
		updates:  updates,
		interval: DefaultInterval,
		logger:   slog.Default(),
		now:      time.Now,
		subs:     make(map[int]Subscriber),
		last:     make(map[string]Envelope),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subscribe registers s and returns a function that removes it.
func (p *Publisher) Subscribe(s Subscriber) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = s
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}
}

// Subscribers returns the number of registered subscribers.
func (p *Publisher) Subscribers() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs)
}

// Flush drains the mailbox once and publishes every update in order. It
// returns the number of updates published.
func (p *Publisher) Flush() int {
	updates := p.updates.Drain()
	if len(updates) == 0 {
		return 0
	}
	now := p.now()

	p.mu.Lock()
	envs := make([]Envelope, len(updates))
	for i, u := range updates {
		envs[i] = Encode(u, now)
		p.last[envs[i].Type] = envs[i]
		if e, ok := u.(message.Encoders); ok {
			p.enc = e.Values
		}
		if e, ok := u.(message.Error); ok {
			p.logger.Warn("Operator error", "text", e.Text)
		}
	}
	subs := make([]Subscriber, 0, len(p.subs))
	for _, s := range p.subs {
		subs = append(subs, s)
	}
	p.mu.Unlock()

	for _, env := range envs {
		for _, s := range subs {
			s.Publish(env)
		}
	}
	return len(envs)
}

// Latest returns the most recent envelope of every update type.
func (p *Publisher) Latest() map[string]Envelope {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]Envelope, len(p.last))
	for k, v := range p.last {
		out[k] = v
	}
	return out
}

// LastEncoders returns the most recent encoder report.
func (p *Publisher) LastEncoders() core.EncoderValues {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enc
}

// Run drains the mailbox until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.Flush()
			return nil
		case <-ticker.C:
			p.Flush()
		}
	}
}
