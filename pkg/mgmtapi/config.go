package mgmtapi

import (
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/mgmtapi/mgmtapi-go/internal/common/cmdexec"
	"github.com/mgmtapi/mgmtapi-go/pkg/mgmtapi/port"
	"github.com/mgmtapi/mgmtapi-go/pkg/mgmtapi/proxy"
	"github.com/mgmtapi/mgmtapi-go/pkg/mgmtapi/trust"
)

// Defaults applied by NewClient.
const (
	DefaultContext          = "web_api"
	DefaultUserAgent        = "mgmtapi-go"
	DefaultPageLimit        = 50
	DefaultTaskPollInterval = 2 * time.Second
)

// Config holds the client settings. Build it with NewClient and Option funcs.
type Config struct {
	// Port is the API port. Zero means resolve it (local probes, then 443).
	Port int `validate:"gte=0,lte=65535"`
	// FingerprintFile is the trust record file.
	FingerprintFile string `validate:"required"`
	// DebugFile, when set, receives an audit record of every call.
	DebugFile string
	// Proxy is "[user[:password]@]host[:port]"; empty means direct connections.
	Proxy string
	// Fingerprint pins the server certificate and bypasses the trust record file.
	Fingerprint string `validate:"omitempty,hexadecimal,len=40"`
	// APIVersion selects a versioned endpoint ("/v1.9/"). Empty means the server default.
	APIVersion string
	// CloudMgmtID prefixes every path, for cloud hosted management.
	CloudMgmtID string `validate:"omitempty,excludesall=/?# "`
	Context     string `validate:"required,excludesall=?# "`
	UserAgent   string `validate:"required"`
	PageLimit   int    `validate:"gte=1"`

	TaskPollInterval time.Duration `validate:"gt=0"`
	// TaskTimeout bounds a single task wait. Zero waits until the task ends or the
	// context is cancelled.
	TaskTimeout    time.Duration `validate:"gte=0"`
	ConnectTimeout time.Duration `validate:"gte=0"`
	LockTimeout    time.Duration `validate:"gt=0"`

	// Unsafe accepts any certificate when no fingerprint is known.
	Unsafe bool
	// UnsafeAutoAccept stores the live fingerprint on first use without asking.
	UnsafeAutoAccept bool

	Logger      zerolog.Logger   `validate:"-"`
	Runner      cmdexec.Runner   `validate:"-"`
	Environment port.Environment `validate:"-"`

	proxy proxy.Settings
}

// DefaultConfig returns the configuration used when no options are given.
func DefaultConfig() Config {
	return Config{
		FingerprintFile:  trust.DefaultFile,
		Context:          DefaultContext,
		UserAgent:        DefaultUserAgent,
		PageLimit:        DefaultPageLimit,
		TaskPollInterval: DefaultTaskPollInterval,
		LockTimeout:      trust.DefaultLockTimeout,
		Logger:           zerolog.Nop(),
		Runner:           cmdexec.OSRunner{},
		Environment:      port.EnvironmentFromOS(),
	}
}

// Option overrides a configuration default.
type Option func(*Config)

// WithPort sets an explicit API port, disabling port resolution.
func WithPort(p int) Option {
	return func(c *Config) {
		c.Port = p
	}
}

// WithFingerprintFile sets the trust record file.
func WithFingerprintFile(path string) Option {
	return func(c *Config) {
		c.FingerprintFile = path
	}
}

// WithDebugFile enables the audit file.
func WithDebugFile(path string) Option {
	return func(c *Config) {
		c.DebugFile = path
	}
}

// WithProxy routes requests through an HTTP proxy.
func WithProxy(p string) Option {
	return func(c *Config) {
		c.Proxy = p
	}
}

// WithFingerprint pins the server certificate to a SHA-1 hex digest.
func WithFingerprint(fp string) Option {
	return func(c *Config) {
		c.Fingerprint = fp
	}
}

// WithAPIVersion selects a versioned API endpoint.
func WithAPIVersion(v string) Option {
	return func(c *Config) {
		c.APIVersion = v
	}
}

// WithCloudMgmtID sets the cloud management id path prefix.
func WithCloudMgmtID(id string) Option {
	return func(c *Config) {
		c.CloudMgmtID = id
	}
}

// WithContext sets the API context path segment.
func WithContext(ctx string) Option {
	return func(c *Config) {
		c.Context = ctx
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Config) {
		c.UserAgent = ua
	}
}

// WithPageLimit sets the page size used by Query.
func WithPageLimit(n int) Option {
	return func(c *Config) {
		c.PageLimit = n
	}
}

// WithTaskPollInterval sets how often task status is polled.
func WithTaskPollInterval(d time.Duration) Option {
	return func(c *Config) {
		c.TaskPollInterval = d
	}
}

// WithTaskTimeout bounds each task wait.
func WithTaskTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.TaskTimeout = d
	}
}

// WithConnectTimeout bounds each HTTP request.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.ConnectTimeout = d
	}
}

// WithLockTimeout bounds trust store lock waits.
func WithLockTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.LockTimeout = d
	}
}

// WithUnsafe accepts any server certificate when no fingerprint is known.
func WithUnsafe(unsafe bool) Option {
	return func(c *Config) {
		c.Unsafe = unsafe
	}
}

// WithUnsafeAutoAccept trusts and stores unknown fingerprints without approval.
func WithUnsafeAutoAccept(accept bool) Option {
	return func(c *Config) {
		c.UnsafeAutoAccept = accept
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithRunner replaces the subprocess runner used for port probes and root login.
func WithRunner(r cmdexec.Runner) Option {
	return func(c *Config) {
		c.Runner = r
	}
}

// WithEnvironment overrides the management server markers read from the process
// environment.
func WithEnvironment(env port.Environment) Option {
	return func(c *Config) {
		c.Environment = env
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) validate() error {
	c.Fingerprint = strings.ToLower(strings.TrimSpace(c.Fingerprint))
	c.Context = strings.Trim(c.Context, "/")
	c.CloudMgmtID = strings.Trim(c.CloudMgmtID, "/")
	c.APIVersion = strings.TrimPrefix(strings.TrimSpace(c.APIVersion), "v")

	if err := validate.Struct(c); err != nil {
		return ErrInvalidConfig.MsgErr(err.Error(), err)
	}
	if c.APIVersion != "" {
		if _, err := semver.NewVersion(c.APIVersion); err != nil {
			return ErrInvalidConfig.MsgErr("invalid API version "+c.APIVersion, err)
		}
	}
	settings, err := proxy.Parse(c.Proxy)
	if err != nil {
		return err
	}
	c.proxy = settings
	if c.Runner == nil {
		c.Runner = cmdexec.OSRunner{}
	}
	return nil
}
