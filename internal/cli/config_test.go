package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgmtapi/mgmtapi-go/pkg/mgmtapi/port"
	"github.com/mgmtapi/mgmtapi-go/pkg/mgmtapi/trust"
)

func TestLoadConfig(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MGMT_TEST_CONFIG_USER", "admin")

	tests := []struct {
		name     string
		file     string
		content  string
		expected Config
		wantErr  bool
	}{
		{
			name:     "yaml",
			file:     "config.yaml",
			content:  "version: 0.1.0\nserver: https://mgmt.example.com/\nuser: '{{ .ENV.MGMT_TEST_CONFIG_USER }}'\ndomain: dom1\n",
			expected: Config{Version: "0.1.0", Server: "mgmt.example.com", User: "admin", Domain: "dom1"},
		},
		{
			name:     "yaml with port in server",
			file:     "config.yml",
			content:  "server: mgmt.example.com:4434\nunsafe: true\n",
			expected: Config{Server: "mgmt.example.com", Port: 4434, Unsafe: true},
		},
		{
			name:     "toml",
			file:     "config.toml",
			content:  "version = \"0.1.0\"\nserver = \"10.0.0.1\"\nport = 8443\nuser = \"{{ .ENV.MGMT_TEST_CONFIG_USER }}\"\nproxy = \"proxy.local:3128\"\n",
			expected: Config{Version: "0.1.0", Server: "10.0.0.1", Port: 8443, User: "admin", Proxy: "proxy.local:3128"},
		},
		{
			name:    "missing server",
			file:    "empty.yaml",
			content: "user: admin\n",
			wantErr: true,
		},
		{
			name:    "conflicting port",
			file:    "conflict.yaml",
			content: "server: mgmt.example.com:4434\nport: 443\n",
			wantErr: true,
		},
		{
			name:    "bad port",
			file:    "badport.yaml",
			content: "server: mgmt.example.com:http\n",
			wantErr: true,
		},
		{
			name:    "invalid yaml",
			file:    "bad.yaml",
			content: "server: [\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			file := filepath.Join(dir, tt.file)
			require.NoError(t, os.WriteFile(file, []byte(tt.content), 0o600))

			err := LoadConfig(file)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.expected.FingerprintFile = filepath.Join(dir, trust.DefaultFile)
			assert.Equal(t, tt.expected, *GetConfig())
		})
	}
}

func TestLoadConfigBadPortIsClassified(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("server: host\nport: 70000\n"), 0o600))
	assert.ErrorIs(t, LoadConfig(file), port.ErrInvalidPort)
}

func TestWriteConfigRoundTrip(t *testing.T) {
	for _, name := range []string{"nested/config.yaml", "nested/config.toml"} {
		t.Run(filepath.Ext(name), func(t *testing.T) {
			file := filepath.Join(t.TempDir(), name)
			cfg := Config{
				Version:          configVersion,
				Server:           "mgmt.example.com",
				Port:             4434,
				User:             "admin",
				FingerprintFile:  "/var/lib/mgmtcli/fp.json",
				UnsafeAutoAccept: true,
				SessionID:        "sid-1",
			}
			require.NoError(t, cfg.WriteConfig(file))

			info, err := os.Stat(file)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

			require.NoError(t, LoadConfig(file))
			assert.Equal(t, cfg, *GetConfig())
		})
	}

	var cfg Config
	assert.Error(t, cfg.WriteConfig(""))
}

func TestConfigCommand(t *testing.T) {
	file := filepath.Join(t.TempDir(), "mgmtcli", "config.yaml")

	out, _, err := runCLI(t, "config", "--server", "https://mgmt.example.com:4434/", "--user", "admin", "--domain", "dom1", "--config", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Server configured: mgmt.example.com")

	require.NoError(t, LoadConfig(file))
	cfg := GetConfig()
	assert.Equal(t, "mgmt.example.com", cfg.Server)
	assert.Equal(t, 4434, cfg.Port)
	assert.Equal(t, "admin", cfg.User)
	assert.Equal(t, "dom1", cfg.Domain)
	assert.Equal(t, configVersion, cfg.Version)

	out, _, err = runCLI(t, "config", "show", "--config", file)
	require.NoError(t, err)
	assert.Contains(t, out, "server: mgmt.example.com")

	// clear only drops the kept session
	cfg.SessionID = "sid-1"
	require.NoError(t, cfg.WriteConfig(file))
	_, _, err = runCLI(t, "config", "clear", "--config", file)
	require.NoError(t, err)
	require.NoError(t, LoadConfig(file))
	assert.Empty(t, GetConfig().SessionID)
	assert.Equal(t, "admin", GetConfig().User)

	_, _, err = runCLI(t, "config", "--server", "host:0", "--config", file)
	assert.ErrorIs(t, err, port.ErrInvalidPort)
}
