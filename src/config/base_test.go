package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/govproposals/src/data"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("MYSQL_DSN", "user:pw@tcp(db:3306)/gov")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "user:pw@tcp(db:3306)/gov", cfg.DSN())
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, data.PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: 30 * time.Minute}, cfg.Pool())
	assert.Equal(t, 32, cfg.DispatchMaxConcurrent)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u@h/db")
	t.Setenv("MYSQL_DSN", "ignored")
	t.Setenv("STORE_TIMEOUT", "250ms")
	t.Setenv("DISPATCH_MAX_CONCURRENT", "4")
	t.Setenv("HTTP_ALLOW_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://u@h/db", cfg.DSN())
	assert.Equal(t, 250*time.Millisecond, cfg.StoreTimeout)
	assert.Equal(t, 4, cfg.DispatchMaxConcurrent)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTPAllowOrigins)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("STORE_TIMEOUT", "soon")
	_, err := Load()
	assert.Error(t, err)
}

func TestApplySettings(t *testing.T) {
	db, err := data.Connect("sqlite::memory:", data.PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(func() {
		data.ResetSettings()
		_ = data.Close(db)
	})
	require.NoError(t, data.Migrate(db))
	require.NoError(t, db.Create(&[]data.Setting{
		{Name: SettingDiscordToken, Value: "from-db", Active: 1},
		{Name: SettingGuildID, Value: "guild-db", Active: 1},
		{Name: SettingSlashCommands, Value: "off", Active: 1},
	}).Error)
	require.NoError(t, data.LoadSettings(context.Background(), db))

	cfg := Base{DatabaseURL: "sqlite::memory:", GuildID: "guild-env"}
	cfg.ApplySettings()

	assert.Equal(t, "from-db", cfg.Token)
	assert.Equal(t, "guild-env", cfg.GuildID, "environment wins over settings")
	assert.Equal(t, "!", cfg.CommandPrefix)
	assert.False(t, cfg.SlashCommandsEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	data.ResetSettings()

	assert.ErrorIs(t, Base{Token: "t"}.Validate(), ErrMissingDSN)
	assert.ErrorIs(t, Base{DatabaseURL: "sqlite::memory:"}.Validate(), ErrMissingToken)
	assert.NoError(t, Base{MySQLDSN: "u@tcp(h)/db", Token: "t"}.Validate())

	cfg := Base{}
	cfg.ApplySettings()
	assert.True(t, cfg.SlashCommandsEnabled())
}

func TestParseBoolDefault(t *testing.T) {
	tests := []struct {
		in       string
		fallback bool
		want     bool
	}{
		{"1", false, true},
		{"YES", false, true},
		{" on ", false, true},
		{"0", true, false},
		{"false", true, false},
		{"", true, true},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseBoolDefault(tt.in, tt.fallback), tt.in)
	}
}
