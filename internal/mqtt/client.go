package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"sauron-gateway/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

// ErrInvalidTopicLevel is returned for ids that cannot be used as a single
// topic level. Sensor ids come from advertised names and are not trusted.
var ErrInvalidTopicLevel = errors.New("invalid topic level")

type Client struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// Telemetry is one accepted sensor frame.
type Telemetry struct {
	SensorID    string    `json:"sensor_id"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature *float64  `json:"temperature_c,omitempty"`
	Humidity    *float64  `json:"humidity_pct,omitempty"`
	Battery     *float64  `json:"battery_pct,omitempty"`
	Format      string    `json:"format,omitempty"`
	RSSI        int16     `json:"rssi,omitempty"`
}

// GatewayHealth mirrors the liveness signals for remote supervisors.
type GatewayHealth struct {
	GatewayID  string    `json:"gateway_id"`
	LastUpdate time.Time `json:"last_update"`
	Healthy    bool      `json:"healthy"`
	Stuck      bool      `json:"stuck"`
	LowMemory  bool      `json:"low_memory"`
	Sensors    int       `json:"sensors"`
}

// checkTopicLevel rejects ids that would add levels, act as wildcards or
// break the UTF-8 topic encoding.
func checkTopicLevel(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTopicLevel)
	}
	if strings.ContainsAny(id, "/+#\x00") || !utf8.ValidString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidTopicLevel, id)
	}
	return nil
}

func TelemetryTopic(sensorID string) string {
	return fmt.Sprintf("sensors/%s/telemetry", sensorID)
}

func HealthTopic(gatewayID string) string {
	return fmt.Sprintf("gateways/%s/health", gatewayID)
}

func NewClient(cfg config.Config, logger *slog.Logger) (*Client, error) {
	if cfg.MQTTBroker == "" {
		return nil, fmt.Errorf("mqtt broker not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)

	// Session settings
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	// Keepalive / timeouts
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// Callbacks keep internal state accurate
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c, nil
}

// Connect establishes connection to the MQTT broker.
// This function waits for the initial connection, and respects ctx and Disconnect().
func (c *Client) Connect(ctx context.Context) error {
	// Fail fast if already stopped.
	select {
	case <-c.stopCh:
		return fmt.Errorf("client stopped")
	default:
	}

	if c.IsConnected() {
		return nil
	}

	// With ConnectRetry(true), paho keeps retrying internally.
	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			// OnConnectHandler sets connected=true.
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return fmt.Errorf("client stopped")
		default:
		}
	}
}

// PublishTelemetry publishes one sensor frame to the sensor topic.
func (c *Client) PublishTelemetry(sensorID string, telemetry Telemetry) error {
	if err := checkTopicLevel(sensorID); err != nil {
		return fmt.Errorf("publish telemetry: %w", err)
	}
	if !c.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	telemetry.SensorID = sensorID
	if telemetry.Timestamp.IsZero() {
		telemetry.Timestamp = time.Now()
	}

	data, err := json.Marshal(telemetry)
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}

	topic := TelemetryTopic(sensorID)
	if err := c.publish(topic, false, data); err != nil {
		return fmt.Errorf("publish telemetry: %w", err)
	}

	c.logger.Debug("published telemetry", "topic", topic, "sensor_id", sensorID)
	return nil
}

// PublishHealth publishes the gateway liveness state as a retained message.
func (c *Client) PublishHealth(health GatewayHealth) error {
	if health.GatewayID == "" {
		health.GatewayID = c.cfg.MQTTClientID
	}
	if err := checkTopicLevel(health.GatewayID); err != nil {
		return fmt.Errorf("publish health: %w", err)
	}
	if !c.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	data, err := json.Marshal(health)
	if err != nil {
		return fmt.Errorf("marshal health: %w", err)
	}

	topic := HealthTopic(health.GatewayID)
	if err := c.publish(topic, true, data); err != nil {
		return fmt.Errorf("publish health: %w", err)
	}

	c.logger.Debug("published gateway health",
		"topic", topic,
		"healthy", health.Healthy,
		"stuck", health.Stuck,
		"low_memory", health.LowMemory,
	)
	return nil
}

func (c *Client) publish(topic string, retained bool, payload []byte) error {
	token := c.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		c.logger.Error("mqtt publish failed", "topic", topic, "error", err)
		return err
	}
	return nil
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect stops the client and closes the MQTT connection.
// Idempotent and safe to call multiple times.
// After Disconnect, Connect() will return "client stopped".
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	// Paho Disconnect quiesces in-flight work for the given ms.
	if c.client != nil {
		c.client.Disconnect(250)
	}

	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
