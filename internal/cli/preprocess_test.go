package cli

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir switches to dir for the rest of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestPreprocessConfig(t *testing.T) {
	chdir(t, t.TempDir())

	tests := []struct {
		name     string
		input    string
		envVars  map[string]string
		expected string
		wantErr  string
	}{
		{
			name:     "simple substitution",
			input:    "user: {{ .ENV.MGMT_TEST_USER }}",
			envVars:  map[string]string{"MGMT_TEST_USER": "admin"},
			expected: "user: admin",
		},
		{
			name:     "several variables",
			input:    "server: {{ .ENV.MGMT_TEST_HOST }}\nport: {{ .ENV.MGMT_TEST_PORT }}",
			envVars:  map[string]string{"MGMT_TEST_HOST": "mgmt.example.com", "MGMT_TEST_PORT": "4434"},
			expected: "server: mgmt.example.com\nport: 4434",
		},
		{
			name:     "value with equals sign and symbols",
			input:    "proxy: {{ .ENV.MGMT_TEST_PROXY }}",
			envVars:  map[string]string{"MGMT_TEST_PROXY": "u:p=w!@proxy:3128"},
			expected: "proxy: u:p=w!@proxy:3128",
		},
		{
			name:     "no placeholders",
			input:    "server: plain\n",
			expected: "server: plain\n",
		},
		{
			name:    "missing variable",
			input:   "user: {{ .ENV.MGMT_TEST_MISSING }}",
			wantErr: "missing environment variable: MGMT_TEST_MISSING",
		},
		{
			name:    "invalid template",
			input:   "user: {{ .ENV.MGMT_TEST_USER }",
			wantErr: "template error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			got, err := PreprocessConfig([]byte(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestPreprocessConfigWithEnvFile(t *testing.T) {
	chdir(t, t.TempDir())
	require.NoError(t, os.WriteFile(".env", []byte("MGMT_TEST_ENVFILE_USER=from_file\nMGMT_TEST_ENVFILE_DOMAIN=dom1\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("MGMT_TEST_ENVFILE_DOMAIN")
	})
	// The process environment wins over .env.
	t.Setenv("MGMT_TEST_ENVFILE_USER", "from_env")

	got, err := PreprocessConfig([]byte("user: {{ .ENV.MGMT_TEST_ENVFILE_USER }}\ndomain: {{ .ENV.MGMT_TEST_ENVFILE_DOMAIN }}"))
	require.NoError(t, err)
	assert.Equal(t, "user: from_env\ndomain: dom1", string(got))
}
