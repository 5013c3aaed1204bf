package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/approvals.db", cfg.Database.Path)
	assert.False(t, cfg.Lark.Enabled)
	assert.True(t, cfg.Scanner.Enabled)
	assert.Equal(t, 48*time.Hour, cfg.Scanner.Threshold)
	assert.Equal(t, "json", cfg.Logger.Format)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
  read_timeout: 5s
lark:
  enabled: true
  app_id: from-file
scanner:
  schedule: "@every 1m"
  threshold: 2h
seed:
  dir: seeds
`), 0o644))

	t.Setenv("LARK_APP_SECRET", "s3cret")
	t.Setenv("APPROVAL_LARK_APP_ID", "from-env")
	t.Setenv("APPROVAL_DATABASE_PATH", "/tmp/approvals.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "from-env", cfg.Lark.AppID)
	assert.Equal(t, "s3cret", cfg.Lark.AppSecret)
	assert.Equal(t, "/tmp/approvals.db", cfg.Database.Path)
	assert.Equal(t, 2*time.Hour, cfg.Scanner.Threshold)

	cc := cfg.ToContainerConfig()
	assert.Equal(t, "seeds", cc.SeedDir)
	assert.Equal(t, "@every 1m", cc.Worker.StallScanSchedule)
	assert.True(t, cc.Lark.Enabled)
	require.NoError(t, cc.Validate())
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"lark without secret", func(c *Config) { c.Lark.Enabled = true; c.Lark.AppID = "cli_a" }, "lark.app_secret"},
		{"no archive dir", func(c *Config) { c.Archive.Dir = "" }, "archive.dir"},
		{"bad schedule", func(c *Config) { c.Scanner.Schedule = "*/5 * * * *" }, "scanner.schedule"},
		{"zero threshold", func(c *Config) { c.Scanner.Threshold = 0 }, "scanner.threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	cfg := valid()
	cfg.Scanner.Enabled = false
	cfg.Scanner.Schedule = ""
	assert.NoError(t, cfg.Validate(), "disabled scanner skips schedule checks")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, LoadDotEnv(filepath.Join(dir, "absent.env")))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("APPROVAL_TEST_DOTENV=loaded\n"), 0o644))
	t.Setenv("APPROVAL_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("APPROVAL_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("APPROVAL_TEST_DOTENV"))
}
