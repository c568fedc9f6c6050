package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/mgmtapi/mgmtapi-go/internal/common/httpclient"
	"github.com/mgmtapi/mgmtapi-go/pkg/mgmtapi"
	"github.com/mgmtapi/mgmtapi-go/pkg/mgmtapi/trust"
)

type seenRequest struct {
	command string
	sid     string
	body    string
}

// testServer answers a handful of API commands the way a management server does.
type testServer struct {
	srv  *httptest.Server
	host string
	port int

	mu   sync.Mutex
	seen []seenRequest
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{}
	ts.srv = httptest.NewTLSServer(http.HandlerFunc(ts.serve))
	t.Cleanup(ts.srv.Close)
	addr := ts.srv.Listener.Addr().(*net.TCPAddr)
	ts.host = addr.IP.String()
	ts.port = addr.Port
	return ts
}

func (ts *testServer) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		// fingerprint probes
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	body, _ := io.ReadAll(r.Body)
	command := path.Base(r.URL.Path)
	ts.mu.Lock()
	ts.seen = append(ts.seen, seenRequest{command: command, sid: r.Header.Get(mgmtapi.SIDHeader), body: string(body)})
	ts.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	reply := func(status int, out string) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(out))
	}
	switch command {
	case "login":
		if gjson.GetBytes(body, "password").String() != "secret" {
			reply(http.StatusBadRequest, `{"code":"err_login_failed","message":"Authentication to server failed."}`)
			return
		}
		reply(http.StatusOK, `{"sid":"cli-sid","api-server-version":"1.9"}`)
	case "logout":
		reply(http.StatusOK, `{"message":"OK"}`)
	case "add-host":
		reply(http.StatusOK, `{"uid":"h-1","name":"`+gjson.GetBytes(body, "name").String()+`"}`)
	case "show-hosts":
		reply(http.StatusOK, `{"objects":[{"name":"h1"},{"name":"h2"},{"name":"h3"}],"from":1,"to":3,"total":3}`)
	default:
		reply(http.StatusNotFound, `{"code":"generic_err_command_not_found","message":"Unknown command"}`)
	}
}

func (ts *testServer) commands() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	var out []string
	for _, s := range ts.seen {
		out = append(out, s.command)
	}
	return out
}

func (ts *testServer) last() seenRequest {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.seen[len(ts.seen)-1]
}

func (ts *testServer) fingerprint() string {
	return httpclient.Fingerprint(ts.srv.Certificate().Raw)
}

// writeTestConfig writes a config for ts into a temp dir and makes that dir the
// working directory, so no stray .env is picked up.
func writeTestConfig(t *testing.T, ts *testServer, edit func(*Config)) string {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvUser, "")
	t.Setenv(EnvPassword, "")
	cfg := &Config{Version: configVersion, Server: ts.host, Port: ts.port, User: "admin"}
	if edit != nil {
		edit(cfg)
	}
	file := filepath.Join(dir, DefaultConfigFile)
	require.NoError(t, cfg.WriteConfig(file))
	return file
}

func withStdin(t *testing.T, input string) {
	t.Helper()
	prev := stdin
	stdin = strings.NewReader(input)
	t.Cleanup(func() { stdin = prev })
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	config = nil
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, _, err := runCLI(t, "version", "--json", "--config", "/tmp/x.yaml")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"`+getCLIVersion()+`","config_file":"/tmp/x.yaml"}`, out)
}

func TestMissingConfigFile(t *testing.T) {
	_, _, err := runCLI(t, "login", "--config", filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mgmtcli config --server")
}

func TestLoginTrustOnFirstUseAndCall(t *testing.T) {
	ts := newTestServer(t)
	file := writeTestConfig(t, ts, nil)
	t.Setenv(EnvPassword, "secret")

	withStdin(t, "maybe\nyes\n")
	out, errOut, err := runCLI(t, "login", "--config", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Session id: cli-sid")
	assert.Contains(t, out, "API server version: 1.9")
	assert.Contains(t, errOut, "can't be established")
	assert.Contains(t, errOut, trust.FormatFingerprint(ts.fingerprint()))
	assert.Contains(t, errOut, "Please type 'yes' or 'no'.")
	assert.Equal(t, []string{"login", "logout"}, ts.commands())

	stored, err := os.ReadFile(filepath.Join(filepath.Dir(file), trust.DefaultFile))
	require.NoError(t, err)
	assert.Equal(t, ts.fingerprint(), gjson.GetBytes(stored, gjson.Escape(trust.Key(ts.host, ts.port))).String())

	// Trusted now: no prompt input is needed.
	withStdin(t, "")
	out, _, err = runCLI(t, "call", "add-host", `{"name":"web-1"}`, "--json", "--config", file)
	require.NoError(t, err)
	var resp responseOutput
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	name, err := resp.Data.GetString("name")
	require.NoError(t, err)
	assert.Equal(t, "web-1", name.String())

	out, _, err = runCLI(t, "query", "show-hosts", "--json", "--config", file)
	require.NoError(t, err)
	assert.Len(t, gjson.Get(out, "data.objects").Array(), 3)
	assert.False(t, gjson.Get(out, "data.from").Exists())
	assert.Equal(t, int64(3), gjson.Get(out, "data.total").Int())

	_, errOut, err = runCLI(t, "call", "no-such-command", "--config", file)
	assert.ErrorIs(t, err, ErrAlreadyHandled)
	assert.Contains(t, errOut, "Unknown command")
	assert.Contains(t, errOut, "generic_err_command_not_found")
	assert.Equal(t, "logout", ts.last().command)
}

func TestLoginDeclinedFingerprint(t *testing.T) {
	ts := newTestServer(t)
	file := writeTestConfig(t, ts, nil)
	t.Setenv(EnvPassword, "secret")

	withStdin(t, "no\n")
	_, _, err := runCLI(t, "login", "--config", file)
	assert.ErrorIs(t, err, trust.ErrNotApproved)
	assert.NotContains(t, ts.commands(), "login")

	// End of input declines too.
	withStdin(t, "")
	_, _, err = runCLI(t, "call", "show-hosts", "--config", file)
	assert.ErrorIs(t, err, trust.ErrNotApproved)
}

func TestLoginRejected(t *testing.T) {
	ts := newTestServer(t)
	file := writeTestConfig(t, ts, func(c *Config) { c.Fingerprint = ts.fingerprint() })

	withStdin(t, "wrong\n")
	_, errOut, err := runCLI(t, "login", "--config", file)
	assert.ErrorIs(t, err, mgmtapi.ErrAuth)
	assert.Contains(t, err.Error(), "Authentication to server failed.")
	assert.Contains(t, errOut, "Password for admin: ")
}

func TestLoginKeepAndLogout(t *testing.T) {
	ts := newTestServer(t)
	file := writeTestConfig(t, ts, func(c *Config) { c.Fingerprint = ts.fingerprint() })
	t.Setenv(EnvPassword, "secret")

	out, _, err := runCLI(t, "login", "--keep", "--json", "--config", file)
	require.NoError(t, err)
	assert.Equal(t, "cli-sid", gjson.Get(out, "sid").String())
	assert.True(t, gjson.Get(out, "kept").Bool())
	assert.Equal(t, []string{"login"}, ts.commands())

	require.NoError(t, LoadConfig(file))
	assert.Equal(t, "cli-sid", GetConfig().SessionID)

	_, _, err = runCLI(t, "call", "add-host", `{"name":"web-2"}`, "--config", file)
	require.NoError(t, err)
	assert.Equal(t, []string{"login", "add-host"}, ts.commands())
	assert.Equal(t, "cli-sid", ts.last().sid)

	out, _, err = runCLI(t, "logout", "--config", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")
	assert.Equal(t, "logout", ts.last().command)
	require.NoError(t, LoadConfig(file))
	assert.Empty(t, GetConfig().SessionID)

	_, _, err = runCLI(t, "logout", "--config", file)
	assert.Error(t, err)

	_, _, err = runCLI(t, "login", "--keep", "--root", "--config", file)
	assert.Error(t, err)
}

func TestFingerprintCommands(t *testing.T) {
	ts := newTestServer(t)
	file := writeTestConfig(t, ts, nil)
	key := trust.Key(ts.host, ts.port)

	out, _, err := runCLI(t, "fingerprint", "show", "--json", "--config", file)
	require.NoError(t, err)
	assert.Equal(t, ts.fingerprint(), gjson.Get(out, "live").String())
	assert.False(t, gjson.Get(out, "trusted").Bool())

	out, _, err = runCLI(t, "fingerprint", "trust", "--yes", "--config", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Trusted "+key)

	out, _, err = runCLI(t, "fingerprint", "show", "--config", file)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Trusted")

	out, _, err = runCLI(t, "fingerprint", "list", "--json", "--config", file)
	require.NoError(t, err)
	assert.JSONEq(t, `{"`+key+`":"`+ts.fingerprint()+`"}`, out)

	out, _, err = runCLI(t, "fingerprint", "forget", "--config", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed fingerprint of "+key)

	out, _, err = runCLI(t, "fingerprint", "forget", "--config", file)
	require.NoError(t, err)
	assert.Contains(t, out, "No fingerprint stored for "+key)
}

func TestReadPayload(t *testing.T) {
	file := filepath.Join(t.TempDir(), "payload.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"name":"from-file"}`), 0o600))
	withStdin(t, `{"name":"from-stdin"}`)

	tests := []struct {
		name    string
		args    []string
		file    string
		want    string
		wantErr bool
	}{
		{name: "none", want: `{}`},
		{name: "argument", args: []string{`{"name":"arg"}`}, want: `{"name":"arg"}`},
		{name: "file", file: file, want: `{"name":"from-file"}`},
		{name: "stdin", file: "-", want: `{"name":"from-stdin"}`},
		{name: "both", args: []string{`{}`}, file: file, wantErr: true},
		{name: "not an object", args: []string{`[1]`}, wantErr: true},
		{name: "missing file", file: filepath.Join(t.TempDir(), "nope.json"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := readPayload(tt.args, tt.file)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, doc.String())
		})
	}
}
