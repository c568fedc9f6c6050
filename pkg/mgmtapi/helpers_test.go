package mgmtapi

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mgmtapi/mgmtapi-go/internal/common/httpclient"
	"github.com/mgmtapi/mgmtapi-go/pkg/mgmtapi/port"
	"github.com/mgmtapi/mgmtapi-go/pkg/types"
)

type apiRequest struct {
	Path    string
	SID     string
	HasSID  bool
	Agent   string
	Payload types.Document
}

type apiHandler func(req apiRequest) (int, string)

type fakeServer struct {
	srv  *httptest.Server
	host string
	port int

	mu       sync.Mutex
	handlers map[string]apiHandler
	requests []apiRequest
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{handlers: map[string]apiHandler{}}
	f.srv = httptest.NewTLSServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	addr := f.srv.Listener.Addr().(*net.TCPAddr)
	f.host = addr.IP.String()
	f.port = addr.Port
	return f
}

func (f *fakeServer) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	doc, err := types.ParseDocument(body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	_, hasSID := r.Header[http.CanonicalHeaderKey(SIDHeader)]
	req := apiRequest{
		Path:    r.URL.Path,
		SID:     r.Header.Get(SIDHeader),
		HasSID:  hasSID,
		Agent:   r.Header.Get("User-Agent"),
		Payload: doc,
	}
	command := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

	f.mu.Lock()
	f.requests = append(f.requests, req)
	h, ok := f.handlers[command]
	f.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"generic_err_command_not_found","message":"Unknown command"}`))
		return
	}
	status, out := h(req)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(out))
}

func (f *fakeServer) handle(command string, h apiHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[command] = h
}

func (f *fakeServer) reply(command string, status int, body string) {
	f.handle(command, func(apiRequest) (int, string) { return status, body })
}

func (f *fakeServer) calls() []apiRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]apiRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func (f *fakeServer) fingerprint() string {
	return httpclient.Fingerprint(f.srv.Certificate().Raw)
}

// newTestClient returns a client pinned to the fake server's certificate.
func (f *fakeServer) newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithPort(f.port),
		WithFingerprint(f.fingerprint()),
		WithFingerprintFile(filepath.Join(t.TempDir(), "fingerprints.json")),
		WithEnvironment(port.Environment{}),
		WithTaskPollInterval(5 * time.Millisecond),
	}
	c, err := NewClient(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func (f *fakeServer) acceptLogin() {
	f.reply("login", http.StatusOK, `{"sid":"sid-123","api-server-version":"1.9","read-only":false,"session-timeout":600}`)
	f.reply("logout", http.StatusOK, `{"message":"OK"}`)
}
