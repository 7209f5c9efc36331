package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// ErrNotConnected is returned by Notify while the broker is unreachable.
var ErrNotConnected = errors.New("mqtt not connected")

// DefaultConnectTimeout bounds the initial broker handshake.
const DefaultConnectTimeout = 5 * time.Second

const publishTimeout = 2 * time.Second

// MQTTConfig holds broker settings.
type MQTTConfig struct {
	Broker         string // host:port or a tcp://, ssl://, ws:// URL
	ClientID       string
	Username       string
	Password       string
	Topic          string // events go to <Topic>/<event type>
	QoS            byte
	ConnectTimeout time.Duration
}

// MQTTNotifier publishes events to an MQTT broker.
type MQTTNotifier struct {
	cfg    MQTTConfig
	client paho.Client
	logger *slog.Logger

	mu        sync.RWMutex
	connected bool
	published map[string]uint64
	errors    uint64
}

// Stats contains publisher statistics.
type Stats struct {
	Connected bool              `json:"connected"`
	Published map[string]uint64 `json:"published"`
	Errors    uint64            `json:"errors"`
}

// NewMQTT creates a notifier. Call Connect before Notify.
func NewMQTT(cfg MQTTConfig, logger *slog.Logger) *MQTTNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	cfg.Topic = strings.TrimRight(cfg.Topic, "/")
	return &MQTTNotifier{
		cfg:       cfg,
		logger:    logger,
		published: make(map[string]uint64),
	}
}

// BrokerURL returns the broker address with a scheme.
func (n *MQTTNotifier) BrokerURL() string {
	if strings.Contains(n.cfg.Broker, "://") {
		return n.cfg.Broker
	}
	return "tcp://" + n.cfg.Broker
}

// Topic returns the topic an event type is published on.
func (n *MQTTNotifier) Topic(eventType string) string {
	return n.cfg.Topic + "/" + eventType
}

// Connect establishes the broker connection. The client keeps reconnecting
// in the background after a later connection loss.
func (n *MQTTNotifier) Connect(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(n.BrokerURL()).
		SetClientID(n.cfg.ClientID).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(30 * time.Second)

	if n.cfg.Username != "" {
		opts.SetUsername(n.cfg.Username)
		opts.SetPassword(n.cfg.Password)
	}

	opts.SetOnConnectHandler(func(paho.Client) {
		n.setConnected(true)
		n.logger.Info("mqtt connection established", "broker", n.cfg.Broker, "client_id", n.cfg.ClientID)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		n.setConnected(false)
		n.logger.Warn("mqtt connection lost, will auto-reconnect", "broker", n.cfg.Broker, "error", err)
	})

	n.client = paho.NewClient(opts)

	n.logger.Info("connecting to mqtt broker", "broker", n.cfg.Broker)

	token := n.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(n.cfg.ConnectTimeout):
		return fmt.Errorf("mqtt connection timeout after %s", n.cfg.ConnectTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	n.setConnected(true)
	return nil
}

// Notify publishes ev on the topic for its type.
func (n *MQTTNotifier) Notify(ctx context.Context, ev Event) error {
	if !n.isConnected() {
		n.countError()
		return ErrNotConnected
	}

	payload, err := ev.Marshal()
	if err != nil {
		n.countError()
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	topic := n.Topic(ev.Type)
	token := n.client.Publish(topic, n.cfg.QoS, false, payload)
	select {
	case <-token.Done():
	case <-time.After(publishTimeout):
		n.countError()
		return fmt.Errorf("publish timeout")
	case <-ctx.Done():
		n.countError()
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		n.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	n.mu.Lock()
	n.published[topic]++
	n.mu.Unlock()

	n.logger.Debug("event published", "topic", topic, "id", ev.ID, "size", len(payload))
	return nil
}

// Close disconnects from the broker.
func (n *MQTTNotifier) Close() error {
	if n.client != nil && n.client.IsConnected() {
		n.client.Disconnect(250)
		n.logger.Info("mqtt disconnected")
	}
	n.setConnected(false)
	return nil
}

// Stats returns publisher statistics.
func (n *MQTTNotifier) Stats() Stats {
	n.mu.RLock()
	defer n.mu.RUnlock()

	published := make(map[string]uint64, len(n.published))
	for k, v := range n.published {
		published[k] = v
	}
	return Stats{Connected: n.connected, Published: published, Errors: n.errors}
}

func (n *MQTTNotifier) setConnected(v bool) {
	n.mu.Lock()
	n.connected = v
	n.mu.Unlock()
}

func (n *MQTTNotifier) isConnected() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.connected
}

func (n *MQTTNotifier) countError() {
	n.mu.Lock()
	n.errors++
	n.mu.Unlock()
}
