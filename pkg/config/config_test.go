package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func TestFromViperDefaults(t *testing.T) {
	cfg, err := fromViper(newDefaultViper())
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "0", cfg.Grades.Min.String())
	assert.Equal(t, "100", cfg.Grades.Max.String())
	assert.Equal(t, 20, cfg.Audit.DefaultLimit)
	assert.Equal(t, 500, cfg.Audit.MaxLimit)
	assert.Equal(t, "system", cfg.Audit.DefaultActor)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
	assert.Equal(t, "enrollment-events", cfg.Events.Topic)
	assert.Equal(t, 2, cfg.Events.Workers)
	assert.Equal(t, 1024, cfg.Events.Buffer)
	assert.True(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.JWT.RequireAuth)
}

func TestFromViperOverrides(t *testing.T) {
	v := newDefaultViper()
	v.Set("DB_DRIVER", "SQLite")
	v.Set("GRADE_MAX", "1000")
	v.Set("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	v.Set("IDEMPOTENCY_TTL", "not-a-duration")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "1000", cfg.Grades.Max.String())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Events.Brokers)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
}

func TestFromViperRejectsInvertedGradeBounds(t *testing.T) {
	v := newDefaultViper()
	v.Set("GRADE_MIN", "50")
	v.Set("GRADE_MAX", "10")

	_, err := fromViper(v)
	require.Error(t, err)
}

func TestFromViperRejectsSinglePointGradeRange(t *testing.T) {
	v := newDefaultViper()
	v.Set("GRADE_MIN", "0")
	v.Set("GRADE_MAX", "0")

	_, err := fromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GRADE_MAX")
}

func TestGradeConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultGradeBounds().Validate())
	assert.Error(t, GradeConfig{}.Validate())
}

func TestFromViperRejectsUnknownDriver(t *testing.T) {
	v := newDefaultViper()
	v.Set("DB_DRIVER", "mysql")

	_, err := fromViper(v)
	require.Error(t, err)
}
