// Package mqtt bridges the goalkeeper to an MQTT broker: live updates are
// published under <prefix>/updates/<type> and operator commands are read
// from <prefix>/control.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/foosbot/goalkeeper/internal/config"
	"github.com/foosbot/goalkeeper/internal/message"
	"github.com/foosbot/goalkeeper/internal/presentation"
)

const (
	connectTimeout   = 5 * time.Second
	subscribeTimeout = 5 * time.Second
	disconnectQuiet  = 250 // ms
)

// Command is a control message received from the broker.
type Command struct {
	Command string `json:"command"`
}

// Response acknowledges a command on <prefix>/control/ack.
type Response struct {
	CommandAck string `json:"command_ack"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// Bridge publishes updates and accepts commands.
type Bridge struct {
	cfg       config.MQTTConfig
	submit    func(message.Control)
	logger    *slog.Logger
	newClient func(*paho.ClientOptions) paho.Client

	client paho.Client

	mu        sync.RWMutex
	connected bool
	published uint64
	dropped   uint64
}

// NewBridge creates a bridge. Commands are passed to submit.
func NewBridge(cfg config.MQTTConfig, submit func(message.Control), logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		cfg:       cfg,
		submit:    submit,
		logger:    logger.With("component", "mqtt"),
		newClient: paho.NewClient,
	}
}

// UpdateTopic is the topic updates of the given type are published on.
func (b *Bridge) UpdateTopic(updateType string) string {
	return b.cfg.TopicPrefix + "/updates/" + updateType
}

// ControlTopic is the topic commands are read from.
func (b *Bridge) ControlTopic() string {
	return b.cfg.TopicPrefix + "/control"
}

// AckTopic is the topic command responses are published on.
func (b *Bridge) AckTopic() string {
	return b.ControlTopic() + "/ack"
}

// Connect establishes the broker connection. The control subscription is
// renewed on every reconnect.
func (b *Bridge) Connect(ctx context.Context) error {
	opts := paho.NewClientOptions()
	opts.AddBroker(b.cfg.Broker)
	opts.SetClientID(b.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetOnConnectHandler(b.onConnect)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		b.setConnected(false)
		b.logger.Warn("MQTT connection lost, will auto-reconnect", "broker", b.cfg.Broker, "error", err)
	})

	b.client = b.newClient(opts)
	b.logger.Info("Connecting to MQTT broker", "broker", b.cfg.Broker, "clientId", b.cfg.ClientID)

	token := b.client.Connect()
	timeout := connectTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	return nil
}

func (b *Bridge) onConnect(c paho.Client) {
	token := c.Subscribe(b.ControlTopic(), b.cfg.QoS, b.handleMessage)
	if !token.WaitTimeout(subscribeTimeout) {
		b.logger.Error("MQTT control subscription timeout", "topic", b.ControlTopic())
		return
	}
	if err := token.Error(); err != nil {
		b.logger.Error("MQTT control subscription failed", "topic", b.ControlTopic(), "error", err)
		return
	}
	b.setConnected(true)
	b.logger.Info("MQTT connection established", "broker", b.cfg.Broker, "control", b.ControlTopic())
}

func (b *Bridge) setConnected(v bool) {
	b.mu.Lock()
	b.connected = v
	b.mu.Unlock()
}

// Connected reports whether the bridge is connected and subscribed.
func (b *Bridge) Connected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connected
}

// Stats returns the number of published and dropped updates.
func (b *Bridge) Stats() (published, dropped uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.published, b.dropped
}

// Publish sends env without waiting for the broker. Updates are dropped
// while disconnected.
func (b *Bridge) Publish(env presentation.Envelope) {
	if !b.Connected() {
		b.mu.Lock()
		b.dropped++
		b.mu.Unlock()
		return
	}
	payload, err := json.Marshal(env)
	if err != nil {
		b.logger.Error("Failed to encode update", "type", env.Type, "error", err)
		return
	}
	b.client.Publish(b.UpdateTopic(env.Type), b.cfg.QoS, false, payload)

	b.mu.Lock()
	b.published++
	b.mu.Unlock()
}

func (b *Bridge) handleMessage(_ paho.Client, msg paho.Message) {
	var cmd Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		b.logger.Warn("Failed to parse control command", "error", err)
		b.respond(Response{CommandAck: "unknown", Status: "error", Error: "invalid JSON"})
		return
	}

	ctl, err := message.ParseControl(cmd.Command)
	if err != nil {
		b.respond(Response{CommandAck: cmd.Command, Status: "error", Error: err.Error()})
		return
	}
	b.logger.Info("Control command received", "command", ctl.String())
	b.submit(ctl)
	b.respond(Response{CommandAck: ctl.String(), Status: "accepted"})
}

func (b *Bridge) respond(resp Response) {
	resp.Timestamp = time.Now().UTC().Format(time.RFC3339)
	payload, err := json.Marshal(resp)
	if err != nil {
		return
	}
	b.client.Publish(b.AckTopic(), b.cfg.QoS, false, payload)
}

// Close unsubscribes and disconnects.
func (b *Bridge) Close() error {
	if b.client == nil {
		return nil
	}
	if b.client.IsConnected() {
		token := b.client.Unsubscribe(b.ControlTopic())
		token.WaitTimeout(subscribeTimeout)
	}
	b.client.Disconnect(disconnectQuiet)
	b.setConnected(false)
	b.logger.Info("MQTT bridge stopped")
	return nil
}
