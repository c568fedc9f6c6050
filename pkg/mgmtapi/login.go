package mgmtapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/mgmtapi/mgmtapi-go/pkg/types"
)

type loginRequest struct {
	domain              string
	readOnly            bool
	continueLastSession bool
	sessionName         string
	sessionTimeout      int
	extra               map[string]any
}

// LoginOption adds a field to a login request.
type LoginOption func(*loginRequest)

// WithDomain logs in to a specific domain.
func WithDomain(domain string) LoginOption {
	return func(r *loginRequest) {
		r.domain = domain
	}
}

// WithReadOnly opens a read-only session.
func WithReadOnly() LoginOption {
	return func(r *loginRequest) {
		r.readOnly = true
	}
}

// WithContinueLastSession resumes the previous session of the same user.
func WithContinueLastSession() LoginOption {
	return func(r *loginRequest) {
		r.continueLastSession = true
	}
}

// WithSessionName names the session.
func WithSessionName(name string) LoginOption {
	return func(r *loginRequest) {
		r.sessionName = name
	}
}

// WithSessionTimeout sets the idle timeout of the session, in seconds.
func WithSessionTimeout(seconds int) LoginOption {
	return func(r *loginRequest) {
		r.sessionTimeout = seconds
	}
}

// WithLoginPayload adds arbitrary fields to the login request.
func WithLoginPayload(fields map[string]any) LoginOption {
	return func(r *loginRequest) {
		if r.extra == nil {
			r.extra = make(map[string]any, len(fields))
		}
		for k, v := range fields {
			r.extra[k] = v
		}
	}
}

func newLoginRequest(opts []LoginOption) *loginRequest {
	r := &loginRequest{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *loginRequest) document(base types.Document) (types.Document, error) {
	doc := base
	var err error
	set := func(key string, value any) {
		if err == nil {
			doc, err = doc.With(key, value)
		}
	}
	if r.domain != "" {
		set("domain", r.domain)
	}
	if r.readOnly {
		set("read-only", true)
	}
	if r.continueLastSession {
		set("continue-last-session", true)
	}
	if r.sessionName != "" {
		set("session-name", r.sessionName)
	}
	if r.sessionTimeout > 0 {
		set("session-timeout", r.sessionTimeout)
	}
	for k, v := range r.extra {
		set(k, v)
	}
	if err != nil {
		return types.Document{}, ErrInvalidPayload.MsgErr("cannot build login request", err)
	}
	return doc, nil
}

// Login authenticates with a user name and password, or with an API key when
// creds.APIKey is set. A rejected or unreachable login returns a *LoginError that
// matches ErrAuth and carries the Response.
func (c *Client) Login(ctx context.Context, server string, creds Credentials, opts ...LoginOption) (*Session, error) {
	server = strings.TrimSpace(server)
	if server == "" {
		return nil, ErrInvalidConfig.Msg("server is required")
	}
	base := types.NewDocument()
	var err error
	switch {
	case creds.APIKey != "":
		base, err = base.With("api-key", creds.APIKey)
	case creds.User != "":
		base, err = base.With("user", creds.User)
		if err == nil {
			base, err = base.With("password", creds.Password)
		}
	default:
		return nil, ErrInvalidConfig.Msg("credentials require a user or an API key")
	}
	if err != nil {
		return nil, ErrInvalidPayload.MsgErr("cannot build login request", err)
	}

	req := newLoginRequest(opts)
	payload, err := req.document(base)
	if err != nil {
		return nil, err
	}

	p, err := c.ResolvePort(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, server, p, "", false, "login", payload)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &LoginError{Response: resp, Err: ErrAuth}
	}
	return newSession(server, p, req.domain, resp)
}

// LoginWithAPIKey authenticates with an API key.
func (c *Client) LoginWithAPIKey(ctx context.Context, server, apiKey string, opts ...LoginOption) (*Session, error) {
	if apiKey == "" {
		return nil, ErrInvalidConfig.Msg("API key is required")
	}
	return c.Login(ctx, server, Credentials{APIKey: apiKey}, opts...)
}

// Logout ends the session. The session is marked logged out whatever the server
// answers, and later calls on it fail with ErrSessionClosed.
func (c *Client) Logout(ctx context.Context, s *Session) (*Response, error) {
	if err := checkSession(s); err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, s.Server, s.Port, s.SID.String(), true, "logout", nil)
	if err != nil {
		return nil, err
	}
	s.loggedOut.Store(true)
	return resp, nil
}

// ResumeSession returns a session for a sid obtained by an earlier login, for
// example one kept open by another process. The server is not contacted; a stale
// sid surfaces as a failed Response on the next call.
func (c *Client) ResumeSession(ctx context.Context, server, sid, domain string) (*Session, error) {
	server = strings.TrimSpace(server)
	if server == "" {
		return nil, ErrInvalidConfig.Msg("server is required")
	}
	if sid == "" {
		return nil, ErrMissingSID
	}
	p, err := c.ResolvePort(ctx)
	if err != nil {
		return nil, err
	}
	data, err := types.NewDocument().With("sid", sid)
	if err != nil {
		return nil, ErrInvalidPayload.MsgErr("cannot build session", err)
	}
	return newSession(server, p, domain, &Response{Success: true, StatusCode: http.StatusOK, Data: data})
}
