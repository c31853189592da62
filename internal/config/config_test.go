package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsToMockMode(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("MOCK_MODE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.MockMode)
	assert.Equal(t, 5*time.Second, cfg.SampleInterval)
	assert.Equal(t, 50.0, cfg.FallbackSpeedKmh)
	assert.Equal(t, ":8080", cfg.ListenAddr)
}

func TestLoadPostgresFromParts(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "fleet")
	t.Setenv("MOCK_MODE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.MockMode)
	assert.Contains(t, cfg.DatabaseURL, "host=db.internal")
	assert.Contains(t, cfg.DatabaseURL, "dbname=fleet")
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")

	t.Setenv("SAMPLE_INTERVAL_MS", "-5")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("SAMPLE_INTERVAL_MS", "")
	t.Setenv("MOCK_MODE", "false")
	_, err = Load()
	assert.Error(t, err)
}

func TestOpenSQLiteMigrates(t *testing.T) {
	db, err := OpenSQLite("file:config_test?mode=memory&cache=shared", nil)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	assert.True(t, db.Migrator().HasTable("buses"))
	assert.True(t, db.Migrator().HasColumn("buses", "last_updated"))
}
