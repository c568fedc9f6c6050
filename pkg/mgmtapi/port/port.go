// Package port determines the TCP port of the management API. An explicit port
// always wins; otherwise, when running on the management server itself, local
// helpers are probed before falling back to DefaultPort.
package port

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mgmtapi/mgmtapi-go/internal/common/apperrors"
	"github.com/mgmtapi/mgmtapi-go/internal/common/cmdexec"
)

// DefaultPort is the static fallback.
const DefaultPort = 443

// ErrInvalidPort is returned when a port value, explicit or probed, cannot be parsed.
var ErrInvalidPort = apperrors.ErrConfiguration.New("invalid port")

// Environment variables that mark a management server installation.
const (
	EnvMDSFWDir = "MDS_FWDIR"
	EnvCPDir    = "CPDIR"
)

// Environment describes the local management installation, if any.
type Environment struct {
	MDSFWDir string
	CPDir    string
}

// EnvironmentFromOS reads the installation markers from the process environment.
func EnvironmentFromOS() Environment {
	return Environment{
		MDSFWDir: os.Getenv(EnvMDSFWDir),
		CPDir:    os.Getenv(EnvCPDir),
	}
}

// OnManagementServer reports whether the process runs on the management server.
func (e Environment) OnManagementServer() bool {
	return e.MDSFWDir != ""
}

// Prober reports a port candidate. ok is false when the mechanism is unavailable
// or produced nothing recognizable.
type Prober interface {
	Name() string
	Probe(ctx context.Context) (value string, ok bool, err error)
}

// Resolver picks the API port.
type Resolver struct {
	local   bool
	probers []Prober
	logger  zerolog.Logger
}

// NewResolver builds a resolver that consults the default local probers when env
// marks a management server.
func NewResolver(env Environment, runner cmdexec.Runner, logger zerolog.Logger) *Resolver {
	return &Resolver{
		local: env.OnManagementServer(),
		probers: []Prober{
			&APIGetPortProber{Env: env, Runner: runner},
			&ShellSSLPortProber{Runner: runner},
		},
		logger: logger,
	}
}

// NewResolverWithProbers builds a resolver with an explicit prober chain.
// local reports whether probing is permitted at all.
func NewResolverWithProbers(local bool, logger zerolog.Logger, probers ...Prober) *Resolver {
	return &Resolver{local: local, probers: probers, logger: logger}
}

// Resolve returns the port to use. explicit is the caller-supplied port text and is
// never probed when non-empty.
func (r *Resolver) Resolve(ctx context.Context, explicit string) (int, error) {
	if strings.TrimSpace(explicit) != "" {
		return Parse(explicit)
	}
	if !r.local {
		return DefaultPort, nil
	}
	for _, p := range r.probers {
		value, ok, err := p.Probe(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return 0, err
			}
			r.logger.Debug().Err(err).Str("prober", p.Name()).Msg("port probe unavailable")
			continue
		}
		if !ok {
			continue
		}
		port, err := Parse(value)
		if err != nil {
			return 0, err
		}
		r.logger.Debug().Str("prober", p.Name()).Int("port", port).Msg("resolved port")
		return port, nil
	}
	return DefaultPort, nil
}

// Parse converts port text into a port number in 1..65535.
func Parse(s string) (int, error) {
	text := strings.TrimSpace(s)
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, ErrInvalidPort.MsgErr("port is not a number: "+strconv.Quote(text), err)
	}
	if n < 1 || n > 65535 {
		return 0, ErrInvalidPort.Msg("port out of range: " + text)
	}
	return n, nil
}
