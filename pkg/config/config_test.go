package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "tracewire-collector", cfg.Service)
	assert.Equal(t, ":4318", cfg.Listen)
	assert.Equal(t, 8192, cfg.Capacity)
	assert.Equal(t, "info", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFileYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
service: orders
listen: ":9000"
grpcListen: ":4317"
capacity: 128
filterRule: "status >= 500"
log:
  level: debug
  format: json
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "orders", cfg.Service)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, ":4317", cfg.GRPCListen)
	assert.Equal(t, 128, cfg.Capacity)
	assert.Equal(t, "status >= 500", cfg.FilterRule)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromFileJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{"listen": ":8080", "capacity": 64}`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, 64, cfg.Capacity)
	// untouched fields keep defaults
	assert.Equal(t, "tracewire-collector", cfg.Service)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, ErrFileNotFound)
}

func TestLoadFromFileEmpty(t *testing.T) {
	path := writeFile(t, "empty.yaml", "")
	_, err := LoadFromFile(path)
	require.ErrorIs(t, err, ErrEmptyFile)
}

func TestLoadFromFileDirectory(t *testing.T) {
	_, err := LoadFromFile(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory")
}

func TestParseYAMLInvalid(t *testing.T) {
	_, err := ParseYAML([]byte("listen: [unclosed"))
	require.ErrorIs(t, err, ErrInvalidYAML)
}

func TestParseJSONInvalid(t *testing.T) {
	_, err := ParseJSON([]byte("{not json"))
	require.ErrorIs(t, err, ErrInvalidJSON)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"empty listen", func(c *Config) { c.Listen = "" }, "listen"},
		{"zero capacity", func(c *Config) { c.Capacity = 0 }, "capacity"},
		{"negative capacity", func(c *Config) { c.Capacity = -1 }, "capacity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
