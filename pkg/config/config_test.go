package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg, err := fromViper(v)
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 2*time.Second, cfg.Transaction.MaxWait)
	assert.Equal(t, 5*time.Second, cfg.Transaction.Timeout)
	assert.Equal(t, time.Minute, cfg.QueryCache.DefaultTTL)
	assert.Equal(t, "*/15 * * * *", cfg.Maintenance.Schedule)
	assert.Equal(t, 7*24*time.Hour, cfg.Maintenance.MetricRetention)
	assert.Equal(t, int64(1<<20), cfg.Gateway.MaxBodyBytes)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	v.Set("TX_TIMEOUT", "10s")
	v.Set("TX_MAX_WAIT", "not-a-duration")
	v.Set("TELEMETRY_SAMPLE_RATE", 0.5)

	cfg, err := fromViper(v)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 10*time.Second, cfg.Transaction.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Transaction.MaxWait)
	assert.Equal(t, 0.5, cfg.Telemetry.SampleRate)
}

func TestFromViperRejectsSampleRate(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("TELEMETRY_SAMPLE_RATE", 1.5)

	_, err := fromViper(v)
	require.Error(t, err)
}

func TestDatabaseConfigDSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", cfg.DSN())
	assert.Equal(t, "postgres://u:p@db:5432/n?sslmode=disable", cfg.URL())
}
