package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendDynamoDB, cfg.Store.Backend)
	assert.Equal(t, 30*time.Second, cfg.OracleTimeout())
	assert.Equal(t, 48*time.Hour, cfg.IdempotencyWindow())
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigins)
}

func TestLoadFile_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orderflow.yaml")
	yml := `
port: "9000"
store:
  backend: file
  data_dir: /tmp/orders
llm:
  model: gemini-2.5-flash
  timeout: 10s
cors_allowed_origins:
  - https://shop.example.com
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	t.Setenv("PORT", "9100")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Port, "env wins over file")
	assert.Equal(t, BackendFile, cfg.Store.Backend)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, 10*time.Second, cfg.OracleTimeout())
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, filepath.Join("/tmp/orders", "order_info.json"), cfg.DraftsFile())
	assert.Equal(t, filepath.Join("/tmp/orders", "confirmed_orders.json"), cfg.ConfirmedFile())
	assert.Equal(t, "orders", cfg.Store.DraftsTable, "unset keys keep defaults")
}

func TestLoadFile_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
}

func TestLoadFile_Invalid(t *testing.T) {
	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("port: [\n"), 0o644))
		_, err := LoadFile(path)
		assert.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "postgres")
		_, err := LoadFile("")
		assert.ErrorContains(t, err, "unknown store backend")
	})

	t.Run("bad timeout", func(t *testing.T) {
		t.Setenv("ORACLE_TIMEOUT", "soon")
		_, err := LoadFile("")
		assert.ErrorContains(t, err, "invalid oracle timeout")
	})
}

func TestEnvOverrides_RunLocal(t *testing.T) {
	t.Setenv("RUN_LOCAL", "true")
	t.Setenv("GEMINI_API_KEY", "key")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.True(t, cfg.RunLocal)
	assert.Equal(t, "key", cfg.LLM.APIKey)
}
