package mqtt

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"sauron-gateway/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	return config.Config{
		MQTTBroker:   "127.0.0.1",
		MQTTPort:     1,
		MQTTClientID: "sauron-test",
	}
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "sensors/THS_kitchen/telemetry", TelemetryTopic("THS_kitchen"))
	assert.Equal(t, "gateways/sauron/health", HealthTopic("sauron"))
}

func TestNewClient_RequiresBroker(t *testing.T) {
	_, err := NewClient(config.Config{}, nil)
	require.Error(t, err)
}

func TestTelemetry_JSONOmitsMissingMetrics(t *testing.T) {
	temp := 24.6
	data, err := json.Marshal(Telemetry{
		SensorID:    "THS_kitchen",
		Timestamp:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Temperature: &temp,
	})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "THS_kitchen", got["sensor_id"])
	assert.Equal(t, 24.6, got["temperature_c"])
	assert.NotContains(t, got, "humidity_pct")
	assert.NotContains(t, got, "battery_pct")
}

func TestPublish_NotConnected(t *testing.T) {
	c, err := NewClient(testConfig(), nil)
	require.NoError(t, err)

	assert.False(t, c.IsConnected())
	assert.Error(t, c.PublishTelemetry("THS_a", Telemetry{}))
	assert.Error(t, c.PublishHealth(GatewayHealth{}))
}

func TestConnect_AfterDisconnectFails(t *testing.T) {
	c, err := NewClient(testConfig(), nil)
	require.NoError(t, err)

	c.Disconnect()
	c.Disconnect() // idempotent

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.EqualError(t, c.Connect(ctx), "client stopped")
}

func TestCheckTopicLevel(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{id: "THS_kitchen"},
		{id: "LYWSD03MMC"},
		{id: "sensor with spaces"},
		{id: "", wantErr: true},
		{id: "THS_a/b", wantErr: true},
		{id: "THS_+", wantErr: true},
		{id: "THS_#", wantErr: true},
		{id: "THS_\x00", wantErr: true},
		{id: "THS_\xff", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := checkTopicLevel(tt.id)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTopicLevel)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPublishTelemetry_RejectsTopicHierarchyInName(t *testing.T) {
	c, err := NewClient(testConfig(), nil)
	require.NoError(t, err)

	for _, name := range []string{"THS_a/../gateways/sauron/health", "THS_+", "#"} {
		assert.ErrorIs(t, c.PublishTelemetry(name, Telemetry{}), ErrInvalidTopicLevel, name)
	}
}

func TestPublishHealth_RejectsInvalidGatewayID(t *testing.T) {
	c, err := NewClient(testConfig(), nil)
	require.NoError(t, err)

	assert.ErrorIs(t, c.PublishHealth(GatewayHealth{GatewayID: "gw/1"}), ErrInvalidTopicLevel)
}
