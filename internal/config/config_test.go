package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServer_Defaults(t *testing.T) {
	cfg, err := LoadServer()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Addr)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5432, cfg.Ledger.Port)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoadServer_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka1:9092, kafka2:9092")
	t.Setenv("SERVER_READ_TIMEOUT", "5s")
	t.Setenv("POSTGRES_PORT", "6432")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka1:9092", "kafka2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 6432, cfg.Ledger.Port)
}

func TestLoadServer_KeepsDefaultPortOnBadValue(t *testing.T) {
	t.Setenv("POSTGRES_PORT", "not-a-port")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, 5432, cfg.Ledger.Port)
}

func TestLoadServer_RejectsBadDuration(t *testing.T) {
	t.Setenv("SERVER_WRITE_TIMEOUT", "soon")

	_, err := LoadServer()
	assert.Error(t, err)
}

func TestLoadTerminal(t *testing.T) {
	t.Setenv("CLOUDPAY_EMAIL", "merchant@example.com")
	t.Setenv("CLOUDPAY_PASSWORD", "s3cret")
	t.Setenv("TERMINAL_GROUP", "lane7")
	t.Setenv("TERMINAL_WAIT_TIMEOUT", "45s")

	cfg, err := LoadTerminal()
	require.NoError(t, err)
	assert.Equal(t, "lane7", cfg.Group)
	assert.Equal(t, 400*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 45*time.Second, cfg.WaitTimeout)
}

func TestLoadTerminal_RequiresCredentials(t *testing.T) {
	t.Setenv("CLOUDPAY_EMAIL", "")
	t.Setenv("CLOUDPAY_PASSWORD", "")

	_, err := LoadTerminal()
	assert.Error(t, err)
}
