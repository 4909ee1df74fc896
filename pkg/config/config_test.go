package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.3, cfg.Estimation.Alpha)
	assert.Equal(t, 15.0, cfg.Estimation.ThresholdPct)
	assert.Equal(t, 5, cfg.Estimation.WindowMinutes)
	assert.Equal(t, 5*time.Minute, cfg.Estimation.Window())
	assert.Equal(t, BrokerRedis, cfg.Broker.Transport)
	assert.Equal(t, "queue:events", cfg.Broker.QueueEventsChannel)
	assert.Equal(t, 8001, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Catalog.MapServiceTimeout)
}

func TestLoad_EstimationOverrides(t *testing.T) {
	t.Setenv("EMA_ALPHA", "0.5")
	t.Setenv("SIGNIFICANT_CHANGE_THRESHOLD", "20")
	t.Setenv("ARRIVAL_RATE_WINDOW_MINUTES", "10")
	t.Setenv("MAP_SERVICE_TIMEOUT", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Estimation.Alpha)
	assert.Equal(t, 20.0, cfg.Estimation.ThresholdPct)
	assert.Equal(t, 10, cfg.Estimation.WindowMinutes)
	assert.Equal(t, 3*time.Second, cfg.Catalog.MapServiceTimeout)
}

func TestLoad_KafkaBrokers(t *testing.T) {
	t.Setenv("BROKER", "Kafka")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BrokerKafka, cfg.Broker.Transport)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Broker.KafkaBrokers)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"alpha zero", "EMA_ALPHA", "0"},
		{"alpha above one", "EMA_ALPHA", "1.5"},
		{"negative threshold", "SIGNIFICANT_CHANGE_THRESHOLD", "-1"},
		{"zero window", "ARRIVAL_RATE_WINDOW_MINUTES", "0"},
		{"zero workers", "ESTIMATION_WORKERS", "0"},
		{"unknown broker", "BROKER", "mqtt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
