package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kasuganosora/bossarena/game/boss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9000\n"))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Mode)
	assert.Equal(t, 72*time.Hour, cfg.Security.JWTTTLH)
	assert.Equal(t, 50*time.Millisecond, cfg.Arena.TickInterval())
	assert.Equal(t, 1000, cfg.Arena.DefaultMaxHealth)
	assert.Equal(t, boss.DefaultTuning(), cfg.Boss)
}

func TestLoad_PartialBossOverride(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
arena:
  tick_ms: 20
boss:
  melee_range: 6
  selection:
    phase1_kick_chance: 0.25
`))
	require.NoError(t, err)

	want := boss.DefaultTuning()
	want.MeleeRange = 6
	want.Selection.Phase1KickChance = 0.25
	assert.Equal(t, want, cfg.Boss)
	assert.Equal(t, 20*time.Millisecond, cfg.Arena.TickInterval())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestTickInterval_Fallback(t *testing.T) {
	assert.Equal(t, 50*time.Millisecond, ArenaConfig{}.TickInterval())
}
