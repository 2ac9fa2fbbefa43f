package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	dir := t.TempDir()

	t.Run("loads all keys", func(t *testing.T) {
		path := writeTempJSON(t, dir, "full.json", map[string]any{
			"server_endpoint_addr": "www.example:9000",
			"request_timeout":      "15s",
		})

		cfg := &Config{}
		require.NoError(t, parseJson(cfg, []string{"-c", path}))

		assert.Equal(t, "www.example:9000", cfg.ServerEndpointAddr)
		assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	})

	t.Run("absent keys keep current values", func(t *testing.T) {
		path := writeTempJSON(t, dir, "partial.json", map[string]any{"request_timeout": 2000000000})

		cfg := &Config{ServerEndpointAddr: "defaults:1234"}
		require.NoError(t, parseJson(cfg, []string{"-config", path}))

		assert.Equal(t, "defaults:1234", cfg.ServerEndpointAddr)
		assert.Equal(t, 2*time.Second, cfg.RequestTimeout)
	})

	t.Run("no flag leaves config alone", func(t *testing.T) {
		cfg := &Config{ServerEndpointAddr: "defaults:1234"}
		require.NoError(t, parseJson(cfg, nil))
		assert.Equal(t, "defaults:1234", cfg.ServerEndpointAddr)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		assert.ErrorContains(t, parseJson(&Config{}, []string{"-c", bad}), "parse config file")
	})

	t.Run("missing file", func(t *testing.T) {
		assert.ErrorContains(t, parseJson(&Config{}, []string{"-c", filepath.Join(dir, "nope.json")}), "read config file")
	})
}
