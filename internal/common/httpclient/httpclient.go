// Package httpclient provides the HTTPS transport used to talk to the management API.
// Each HTTPClient is bound to one server and carries its own certificate validator,
// so clients with different trust policies never share TLS state. The package
// requires a Configurator implementation for server and connection details.
package httpclient

import (
	"bytes"
	"context"
	"crypto/sha1"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// Configurator defines the interface for providing server configuration.
type Configurator interface {
	GetServerURL() string
	GetUserAgent() string
}

// ClientOptions contains options for configuring the HTTP client.
type ClientOptions struct {
	// DisableCertValidation accepts any server certificate.
	DisableCertValidation bool
	// Fingerprint pins the leaf certificate to this SHA-1 hex digest. CA
	// verification is skipped when set.
	Fingerprint string
	// OnCertificate observes the fingerprint of every leaf certificate presented.
	OnCertificate func(fingerprint string)
	// Proxy selects the proxy for a request. Nil means direct connections.
	Proxy func(*http.Request) (*url.URL, error)
	// Timeout bounds a whole request. Zero means no limit beyond the context.
	Timeout time.Duration
}

// HTTPClient makes requests to a single management server.
type HTTPClient struct {
	config     Configurator
	httpClient *http.Client
}

// NewClientWithOptions creates a new HTTP client using the provided configuration and options.
func NewClientWithOptions(config Configurator, opts ClientOptions) *HTTPClient {
	transport := &http.Transport{
		Proxy:               opts.Proxy,
		TLSClientConfig:     tlsConfig(opts),
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	return &HTTPClient{
		config: config,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
	}
}

func tlsConfig(opts ClientOptions) *tls.Config {
	pinned := strings.ToLower(strings.TrimSpace(opts.Fingerprint))
	if pinned == "" && !opts.DisableCertValidation && opts.OnCertificate == nil {
		return &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: pinned != "" || opts.DisableCertValidation,
	}
	cfg.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return ErrFingerprintMismatch.Msg("server presented no certificate")
		}
		fp := Fingerprint(rawCerts[0])
		if opts.OnCertificate != nil {
			opts.OnCertificate(fp)
		}
		if pinned != "" && fp != pinned {
			return ErrFingerprintMismatch.Msg("server fingerprint " + fp + " does not match " + pinned)
		}
		return nil
	}
	return cfg
}

// Fingerprint returns the lower-case SHA-1 hex digest of a DER certificate.
func Fingerprint(der []byte) string {
	sum := sha1.Sum(der)
	return hex.EncodeToString(sum[:])
}

// RequestOptions contains options for making HTTP requests.
type RequestOptions struct {
	Method  string            // HTTP method, POST when empty
	Path    string            // path appended to the server URL
	Headers map[string]string // extra request headers
	Body    []byte            // optional request body
}

// Response is the raw outcome of a request that reached the server.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// URL returns the full URL for path on the configured server.
func (c *HTTPClient) URL(p string) (string, error) {
	u, err := url.Parse(c.config.GetServerURL())
	if err != nil {
		return "", ErrInvalidURL.MsgErr("invalid server URL", err)
	}
	u.Path = path.Join("/", u.Path, p)
	if strings.HasSuffix(p, "/") && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String(), nil
}

// DoRequest makes an HTTP request with the given options. Any HTTP status is returned
// as a Response; the error is set only when no response was received.
func (c *HTTPClient) DoRequest(ctx context.Context, opts RequestOptions) (*Response, error) {
	target, err := c.URL(opts.Path)
	if err != nil {
		return nil, err
	}
	method := opts.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(opts.Body))
	if err != nil {
		return nil, ErrInvalidURL.MsgErr("failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if ua := c.config.GetUserAgent(); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// CloseIdleConnections releases pooled connections.
func (c *HTTPClient) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// StaticConfig is a fixed Configurator.
type StaticConfig struct {
	ServerURL string
	UserAgent string
}

func (s StaticConfig) GetServerURL() string { return s.ServerURL }
func (s StaticConfig) GetUserAgent() string { return s.UserAgent }
