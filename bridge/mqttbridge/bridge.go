// Package mqttbridge is the companion gateway collaborator named in spec
// §1 ("a companion gateway bridge that forwards completed transactions to
// a northbound message bus"), out of scope for the engine itself. It is a
// pure consumer of device/engine.Engine.TakeCompleted(): it has no
// feedback path into the engine's routing or transaction state.
//
// Adapted from the teacher's transport/mqtt/mqtt.go, which already
// carries paho.mqtt.golang as a dependency for talking to an MQTT broker;
// original_source's mqtt_test.py shows the same shape of system, an MQTT
// subscriber turning completed transactions into structured records.
package mqttbridge

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/dsrmesh/dsrnode/core"
)

const (
	// DefaultTopicPrefix is the default MQTT topic prefix for published records.
	DefaultTopicPrefix = "dsrnode"

	// pollInterval is how often the bridge checks for a newly completed
	// transaction on the engine.
	pollInterval = 100 * time.Millisecond
)

// Completer is the subset of device/engine.Engine the bridge depends on.
type Completer interface {
	TakeCompleted() (payload []byte, ok bool)
}

// Record is the JSON document published for each completed transaction.
type Record struct {
	Node      core.NodeID `json:"node"`
	Payload   string      `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Config holds the configuration for a Bridge.
type Config struct {
	// Broker is the MQTT broker URL (e.g., "tcp://broker.example.com:1883").
	Broker string
	// Username for MQTT authentication. Leave empty if not required.
	Username string
	// Password for MQTT authentication. Leave empty if not required.
	Password string
	// UseTLS enables TLS for the MQTT connection.
	UseTLS bool
	// ClientID is the MQTT client identifier. If empty, a random one is generated.
	ClientID string
	// TopicPrefix is the MQTT topic prefix (default: "dsrnode"). Records
	// publish to "{TopicPrefix}/{NodeID}/completed".
	TopicPrefix string
	// NodeID identifies the local node whose completed transactions are
	// being published.
	NodeID core.NodeID
	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Bridge polls an engine for completed transactions and publishes each one
// as a JSON record to an MQTT broker.
type Bridge struct {
	cfg    Config
	engine Completer
	client paho.Client
	log    *slog.Logger

	mu        sync.RWMutex
	connected bool
	cancel    context.CancelFunc

	// publish sends a completed record's JSON body to topic. Defaults to
	// b.publishMQTT; tests override it to avoid needing a real broker.
	publish func(topic string, body []byte) error

	// nowFn is overridable so tests can assert on a fixed timestamp.
	nowFn func() time.Time
}

// New creates a Bridge that drains eng's completed transactions.
func New(eng Completer, cfg Config) *Bridge {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	b := &Bridge{
		cfg:    cfg,
		engine: eng,
		log:    cfg.Logger.WithGroup("mqttbridge"),
		nowFn:  time.Now,
	}
	b.publish = b.publishMQTT
	return b
}

// Start connects to the MQTT broker and begins polling the engine for
// completed transactions. It blocks until ctx is cancelled.
func (b *Bridge) Start(ctx context.Context) error {
	if b.cfg.Broker == "" {
		return errors.New("mqttbridge: Config.Broker is required")
	}
	if b.cfg.NodeID == "" {
		return errors.New("mqttbridge: Config.NodeID is required")
	}

	clientID := b.cfg.ClientID
	if clientID == "" {
		clientID = "dsrnode-bridge-" + randomString(16)
	}

	opts := paho.NewClientOptions().
		AddBroker(b.cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(2 * time.Minute).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetCleanSession(true).
		SetOnConnectHandler(b.onConnected).
		SetConnectionLostHandler(b.onConnectionLost)

	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
	}
	if b.cfg.Password != "" {
		opts.SetPassword(b.cfg.Password)
	}
	if b.cfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	b.client = paho.NewClient(opts)

	token := b.client.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return errors.New("mqttbridge: connection timeout")
	}
	if token.Error() != nil {
		return fmt.Errorf("connecting to broker: %w", token.Error())
	}

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.pollLoop(ctx)
	return nil
}

// Stop disconnects from the broker and stops the poll loop.
func (b *Bridge) Stop() {
	b.mu.Lock()
	cancel := b.cancel
	client := b.client
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if client != nil {
		client.Disconnect(1000)
	}
}

// IsConnected reports whether the bridge is currently connected to the broker.
func (b *Bridge) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connected
}

func (b *Bridge) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.drainOnce()
		}
	}
}

func (b *Bridge) drainOnce() {
	payload, ok := b.engine.TakeCompleted()
	if !ok {
		return
	}
	b.publishCompleted(payload)
}

func (b *Bridge) publishCompleted(payload []byte) {
	rec := Record{Node: b.cfg.NodeID, Payload: string(payload), Timestamp: b.nowFn()}
	body, err := json.Marshal(rec)
	if err != nil {
		b.log.Error("failed to marshal completed record", "error", err)
		return
	}

	topic := b.topic()
	if err := b.publish(topic, body); err != nil {
		b.log.Error("failed to publish completed record", "topic", topic, "error", err)
		return
	}
	b.log.Debug("published completed transaction", "topic", topic)
}

// publishMQTT is the real Bridge.publish implementation, used whenever a
// Bridge is constructed via New and talks to an actual broker.
func (b *Bridge) publishMQTT(topic string, body []byte) error {
	token := b.client.Publish(topic, 0, false, body)
	if !token.WaitTimeout(10 * time.Second) {
		return errors.New("timeout publishing to MQTT")
	}
	return token.Error()
}

func (b *Bridge) topic() string {
	return b.cfg.TopicPrefix + "/" + string(b.cfg.NodeID) + "/completed"
}

func (b *Bridge) onConnected(_ paho.Client) {
	b.mu.Lock()
	b.connected = true
	b.mu.Unlock()
	b.log.Info("connected to MQTT broker", "broker", b.cfg.Broker)
}

func (b *Bridge) onConnectionLost(_ paho.Client, err error) {
	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()
	b.log.Error("MQTT connection lost", "error", err)
}

func randomString(n int) string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return string(b)
}
