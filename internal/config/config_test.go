// ABOUTME: Unit tests for configuration loading
// ABOUTME: Covers env expansion, defaults, duration parsing, and validation

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  url: https://id.example.com/api
  timeout: 30s
storage:
  path: /var/lib/idfront/tokens.db
routes:
  login: /signin
  home: /home
auth:
  passkey_second_factor: true
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://id.example.com/api", cfg.Server.URL)
	assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
	assert.Equal(t, "/var/lib/idfront/tokens.db", cfg.Storage.Path)
	assert.Equal(t, "/signin", cfg.Routes.Login)
	assert.Equal(t, "/home", cfg.Routes.Home)
	assert.True(t, cfg.Auth.PasskeySecondFactor)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  url: https://id.example.com/api
storage:
  path: tokens.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/login", cfg.Routes.Login)
	assert.Equal(t, "/dashboard", cfg.Routes.Home)
	assert.Equal(t, 15*time.Second, cfg.Server.Timeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Auth.PasskeySecondFactor)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("IDFRONT_SERVER_URL", "https://id.example.com/api")

	path := writeConfig(t, `
server:
  url: ${IDFRONT_SERVER_URL}
storage:
  path: tokens.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://id.example.com/api", cfg.Server.URL)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing server url",
			content: "storage:\n  path: tokens.db\n",
			wantErr: "server.url is required",
		},
		{
			name:    "relative server url",
			content: "server:\n  url: id.example.com\nstorage:\n  path: tokens.db\n",
			wantErr: "absolute URL",
		},
		{
			name:    "missing storage path",
			content: "server:\n  url: https://id.example.com/api\n",
			wantErr: "storage.path is required",
		},
		{
			name: "identical routes",
			content: `
server:
  url: https://id.example.com/api
storage:
  path: tokens.db
routes:
  login: /same
  home: /same
`,
			wantErr: "must differ",
		},
		{
			name: "bad timeout",
			content: `
server:
  url: https://id.example.com/api
  timeout: soon
storage:
  path: tokens.db
`,
			wantErr: "parsing server timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
