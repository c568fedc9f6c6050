package cli

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mgmtapi/mgmtapi-go/pkg/mgmtapi"
)

// Environment variables read for credentials, also from .env.
const (
	EnvUser     = "MGMT_USER"
	EnvPassword = "MGMT_PASSWORD"
	EnvAPIKey   = "MGMT_API_KEY"
)

// sessionFlags are the login flags shared by commands that need a session.
type sessionFlags struct {
	user     string
	domain   string
	readOnly bool
	root     bool
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.user, "user", "", "User name; overrides MGMT_USER and the config file")
	cmd.Flags().StringVar(&f.domain, "domain", "", "Domain to log in to")
	cmd.Flags().BoolVar(&f.readOnly, "read-only", false, "Open a read-only session")
	cmd.Flags().BoolVar(&f.root, "root", false, "Log in as root through the local mgmt_cli (on the management server only)")
}

func (f *sessionFlags) loginOptions(cfg *Config) []mgmtapi.LoginOption {
	var opts []mgmtapi.LoginOption
	if d := firstNonEmpty(f.domain, cfg.Domain); d != "" {
		opts = append(opts, mgmtapi.WithDomain(d))
	}
	if f.readOnly {
		opts = append(opts, mgmtapi.WithReadOnly())
	}
	return opts
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// newAPIClient builds a library client from the CLI configuration.
func newAPIClient(cfg *Config) (*mgmtapi.Client, error) {
	return mgmtapi.NewClient(
		mgmtapi.WithPort(cfg.Port),
		mgmtapi.WithFingerprintFile(cfg.FingerprintFile),
		mgmtapi.WithFingerprint(cfg.Fingerprint),
		mgmtapi.WithDebugFile(cfg.DebugFile),
		mgmtapi.WithProxy(cfg.Proxy),
		mgmtapi.WithAPIVersion(cfg.APIVersion),
		mgmtapi.WithCloudMgmtID(cfg.CloudMgmtID),
		mgmtapi.WithUserAgent("mgmtcli/"+getCLIVersion()),
		mgmtapi.WithUnsafe(cfg.Unsafe),
		mgmtapi.WithUnsafeAutoAccept(cfg.UnsafeAutoAccept),
		mgmtapi.WithLogger(log.Logger),
	)
}

func resolveCredentials(cfg *Config, f sessionFlags, p *prompter) (mgmtapi.Credentials, error) {
	loadDotEnv()
	if key := os.Getenv(EnvAPIKey); key != "" && f.user == "" {
		return mgmtapi.Credentials{APIKey: key}, nil
	}
	user := firstNonEmpty(f.user, os.Getenv(EnvUser), cfg.User)
	if user == "" {
		return mgmtapi.Credentials{}, errors.New("no credentials: use --user, set " + EnvUser + " or " + EnvAPIKey)
	}
	password := os.Getenv(EnvPassword)
	if password == "" {
		var err error
		password, err = p.password("Password for " + user + ": ")
		if err != nil {
			return mgmtapi.Credentials{}, err
		}
	}
	return mgmtapi.Credentials{User: user, Password: password}, nil
}

// ensureTrusted checks the server fingerprint against the trust store and asks
// about unknown or changed ones. Pinned and unsafe setups skip the check.
func ensureTrusted(ctx context.Context, c *mgmtapi.Client, cfg *Config, server string, p *prompter) error {
	if cfg.Fingerprint != "" || cfg.Unsafe || cfg.UnsafeAutoAccept {
		return nil
	}
	_, err := c.VerifyFingerprint(ctx, server, p)
	return err
}

func login(ctx context.Context, c *mgmtapi.Client, cfg *Config, f sessionFlags, p *prompter) (*mgmtapi.Session, error) {
	if f.root {
		if err := ensureTrusted(ctx, c, cfg, mgmtapi.LocalServer, p); err != nil {
			return nil, err
		}
		return c.LoginAsRoot(ctx, f.loginOptions(cfg)...)
	}
	if err := ensureTrusted(ctx, c, cfg, cfg.Server, p); err != nil {
		return nil, err
	}
	creds, err := resolveCredentials(cfg, f, p)
	if err != nil {
		return nil, err
	}
	return c.Login(ctx, cfg.Server, creds, f.loginOptions(cfg)...)
}

// logout ends s and logs, rather than returns, a failed logout.
func logout(ctx context.Context, c *mgmtapi.Client, s *mgmtapi.Session) {
	resp, err := c.Logout(context.WithoutCancel(ctx), s)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("logout failed")
	case !resp.Success:
		log.Warn().Str("code", resp.ServerCode()).Str("message", resp.ErrorMessage).Msg("logout rejected")
	}
}

// withSession runs fn with a session: the one kept by "login --keep" when there is
// one, otherwise a fresh login that is logged out afterwards.
func withSession(cmd *cobra.Command, f sessionFlags, fn func(ctx context.Context, c *mgmtapi.Client, s *mgmtapi.Session) error) error {
	ctx := cmd.Context()
	cfg := GetConfig()
	c, err := newAPIClient(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	p := newPrompter(cmd.ErrOrStderr())
	if cfg.SessionID != "" && !f.root {
		if err := ensureTrusted(ctx, c, cfg, cfg.Server, p); err != nil {
			return err
		}
		s, err := c.ResumeSession(ctx, cfg.Server, cfg.SessionID, firstNonEmpty(f.domain, cfg.Domain))
		if err != nil {
			return err
		}
		log.Debug().Str("server", s.Address()).Msg("using kept session")
		return fn(ctx, c, s)
	}

	s, err := login(ctx, c, cfg, f, p)
	if err != nil {
		return err
	}
	defer logout(ctx, c, s)
	return fn(ctx, c, s)
}
