package config

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/homerly/rental_backend/appctx"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlagDefaults(t *testing.T) {
	t.Setenv("SWEEPS_ENABLED", "")
	t.Setenv("SWEEP_INTERVAL_SECONDS", "")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "")

	assert.True(t, SweepsEnabled())
	assert.Equal(t, time.Hour, SweepInterval())
	assert.Zero(t, RateLimitPerMinute())
}

func TestFeatureFlagOverrides(t *testing.T) {
	t.Setenv("SWEEPS_ENABLED", "false")
	t.Setenv("SWEEP_INTERVAL_SECONDS", "90")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "120")

	assert.False(t, SweepsEnabled())
	assert.Equal(t, 90*time.Second, SweepInterval())
	assert.Equal(t, 120, RateLimitPerMinute())

	t.Setenv("SWEEP_INTERVAL_SECONDS", "-5")
	assert.Equal(t, time.Hour, SweepInterval())
	t.Setenv("SWEEP_INTERVAL_SECONDS", "soon")
	assert.Equal(t, time.Hour, SweepInterval())
}

func TestOpenDatabase(t *testing.T) {
	t.Setenv("DB_DSN", ":memory:")
	t.Setenv("DB_MAX_OPEN_CONNS", "10")

	conn, err := OpenDatabase(DriverSQLite)
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	assert.NoError(t, sqlDB.Ping())

	_, err = OpenDatabase("oracle")
	assert.ErrorContains(t, err, "unsupported DB_DRIVER")
}

func TestGetDatabaseDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	assert.Equal(t, DriverMySQL, GetDatabaseDriver())
	t.Setenv("DB_DRIVER", " Postgres ")
	assert.Equal(t, DriverPostgres, GetDatabaseDriver())
}

func TestRedisHelpersWithoutRedis(t *testing.T) {
	prev := GetRedisDB()
	SetRedis(nil)
	t.Cleanup(func() { SetRedis(prev) })

	assert.Nil(t, GetRedisLock())
	require.NoError(t, SetRedisValue("k", "v", time.Minute))
	_, found, err := GetRedisValue("k")
	require.NoError(t, err)
	assert.False(t, found)

	var dest map[string]string
	found, err = GetRedisObject("k", &dest)
	require.NoError(t, err)
	assert.False(t, found)

	n, err := IncrRedisWindow(context.Background(), "rate:127.0.0.1", time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, RemoveRedisKey("k"))
}

func TestPublishDomainEventDisabled(t *testing.T) {
	t.Setenv("PUBSUB_PROJECT_ID", "")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	t.Setenv("GCP_PROJECT", "")
	t.Setenv("PUBSUB_TOPIC", "homerly-events")
	assert.False(t, PubSubEnabled())

	id, err := PublishDomainEvent(context.Background(), DomainEvent{EventType: "invoice.paid"})
	require.NoError(t, err)
	assert.Empty(t, id)

	t.Setenv("PUBSUB_PROJECT_ID", "homerly-dev")
	assert.True(t, PubSubEnabled())
}

func TestLogErrorCarriesCorrelationId(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.AddHook(CorrelationHook{})
	hook := test.NewLocal(logger)

	ctx := appctx.Set(context.Background(), appctx.ContextKeyCorrelationId, "req-42")
	LogError(logger.WithContext(ctx), "models", "CreateInvoice", "insert", "inv-1", errors.New("boom"))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "boom", entry.Message)
	assert.Equal(t, "req-42", entry.Data["correlation_id"])
	assert.Equal(t, "CreateInvoice", entry.Data["funcName"])
	assert.Equal(t, "inv-1", entry.Data["data"])

	LogError(logger, "models", "CreateInvoice", "insert", nil, errors.New("again"))
	entry = hook.LastEntry()
	require.NotNil(t, entry)
	assert.NotContains(t, entry.Data, "correlation_id")
	assert.NotContains(t, entry.Data, "data")
}
