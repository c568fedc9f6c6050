package mgmtapi

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mgmtapi/mgmtapi-go/internal/common/httpclient"
	"github.com/mgmtapi/mgmtapi-go/pkg/mgmtapi/port"
	"github.com/mgmtapi/mgmtapi-go/pkg/mgmtapi/trust"
)

// Client talks to one or more management servers. It is safe for concurrent use.
type Client struct {
	cfg      Config
	logger   zerolog.Logger
	resolver *port.Resolver
	audit    *auditLog
	history  *callHistory

	mu         sync.Mutex
	store      *trust.Store
	transports map[string]httpclient.HTTPClientInterface
}

// NewClient builds a client from DefaultConfig and opts. Invalid settings are
// reported as ErrInvalidConfig or proxy.ErrInvalidProxy.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Client{
		cfg:        cfg,
		logger:     cfg.Logger,
		resolver:   port.NewResolver(cfg.Environment, cfg.Runner, cfg.Logger),
		audit:      newAuditLog(cfg.DebugFile),
		history:    newCallHistory(maxHistory),
		transports: make(map[string]httpclient.HTTPClientInterface),
	}, nil
}

// Config returns a copy of the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// ResolvePort returns the configured port, or the resolved one when none was set.
func (c *Client) ResolvePort(ctx context.Context) (int, error) {
	explicit := ""
	if c.cfg.Port > 0 {
		explicit = strconv.Itoa(c.cfg.Port)
	}
	return c.resolver.Resolve(ctx, explicit)
}

// TrustStore opens the configured trust record file on first use.
func (c *Client) TrustStore() (*trust.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store != nil {
		return c.store, nil
	}
	s, err := trust.NewStore(c.cfg.FingerprintFile,
		trust.WithLockTimeout(c.cfg.LockTimeout),
		trust.WithLogger(c.logger),
	)
	if err != nil {
		return nil, err
	}
	c.store = s
	return s, nil
}

// FetchOptions returns the options used to contact servers for fingerprints.
func (c *Client) FetchOptions() trust.FetchOptions {
	return trust.FetchOptions{
		Proxy:     c.cfg.proxy,
		Timeout:   c.cfg.ConnectTimeout,
		Context:   c.cfg.Context,
		UserAgent: c.cfg.UserAgent,
	}
}

// VerifyFingerprint checks the live fingerprint of server against the trust record
// file, asking approver about unknown or changed fingerprints.
func (c *Client) VerifyFingerprint(ctx context.Context, server string, approver trust.Approver) (string, error) {
	p, err := c.ResolvePort(ctx)
	if err != nil {
		return "", err
	}
	store, err := c.TrustStore()
	if err != nil {
		return "", err
	}
	fp, err := store.Verify(ctx, server, p, approver, c.FetchOptions())
	if err != nil {
		return "", err
	}
	c.forgetTransport(server, p)
	return fp, nil
}

// transport returns the HTTP client for server:port, creating it with a certificate
// validator that matches the trust policy for that server.
func (c *Client) transport(ctx context.Context, server string, p int) (httpclient.HTTPClientInterface, error) {
	key := trust.Key(server, p)
	c.mu.Lock()
	t, ok := c.transports[key]
	c.mu.Unlock()
	if ok {
		return t, nil
	}

	opts, err := c.tlsPolicy(ctx, server, p)
	if err != nil {
		return nil, err
	}
	opts.Proxy = c.cfg.proxy.ProxyFunc()
	opts.Timeout = c.cfg.ConnectTimeout

	t = httpclient.NewClientWithOptions(httpclient.StaticConfig{
		ServerURL: c.baseURL(server, p),
		UserAgent: c.cfg.UserAgent,
	}, opts)

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.transports[key]; ok {
		return existing, nil
	}
	c.transports[key] = t
	return t, nil
}

func (c *Client) tlsPolicy(ctx context.Context, server string, p int) (httpclient.ClientOptions, error) {
	if c.cfg.Fingerprint != "" {
		return httpclient.ClientOptions{Fingerprint: c.cfg.Fingerprint}, nil
	}
	store, err := c.TrustStore()
	if err != nil {
		return httpclient.ClientOptions{}, err
	}
	stored, ok, err := store.Get(ctx, server, p)
	if err != nil {
		return httpclient.ClientOptions{}, err
	}
	if ok {
		return httpclient.ClientOptions{Fingerprint: stored}, nil
	}
	if c.cfg.UnsafeAutoAccept {
		fp, err := store.Verify(ctx, server, p, trust.AutoAccept{}, c.FetchOptions())
		if err != nil {
			return httpclient.ClientOptions{}, err
		}
		c.logger.Warn().Str("server", trust.Key(server, p)).Str("fingerprint", fp).Msg("accepted unknown server fingerprint")
		return httpclient.ClientOptions{Fingerprint: fp}, nil
	}
	if c.cfg.Unsafe {
		return httpclient.ClientOptions{DisableCertValidation: true}, nil
	}
	return httpclient.ClientOptions{}, nil
}

func (c *Client) forgetTransport(server string, p int) {
	key := trust.Key(server, p)
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.transports[key]; ok {
		t.CloseIdleConnections()
		delete(c.transports, key)
	}
}

func (c *Client) baseURL(server string, p int) string {
	u := "https://" + net.JoinHostPort(server, strconv.Itoa(p))
	if c.cfg.CloudMgmtID != "" {
		u += "/" + c.cfg.CloudMgmtID
	}
	return u
}

func (c *Client) commandPath(command string) string {
	parts := []string{c.cfg.Context}
	if c.cfg.APIVersion != "" {
		parts = append(parts, "v"+c.cfg.APIVersion)
	}
	return strings.Join(append(parts, command), "/")
}

// Close releases pooled connections.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, t := range c.transports {
		t.CloseIdleConnections()
		delete(c.transports, key)
	}
	return nil
}
