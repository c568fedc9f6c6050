// Package proxy parses the single-string proxy setting accepted by the client,
// in the form [user[:password]@]host[:port].
package proxy

import (
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mgmtapi/mgmtapi-go/internal/common/apperrors"
)

// DefaultPort is used when the setting names a host without a port.
const DefaultPort = 8080

// ErrInvalidProxy is returned for settings strings that do not follow the grammar.
var ErrInvalidProxy = apperrors.ErrConfiguration.New("invalid proxy settings")

// Settings holds parsed proxy parameters. Host is set if and only if Present is true.
type Settings struct {
	Username string
	Password string
	Host     string
	Port     int
	Present  bool
}

// Parse parses s. An empty (or all-space) string yields Settings with Present=false.
func Parse(s string) (Settings, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Settings{}, nil
	}

	if strings.Count(s, "@") > 1 {
		return Settings{}, ErrInvalidProxy.Msg("more than one '@' in proxy settings")
	}

	var settings Settings
	hostPart := s
	if at := strings.IndexByte(s, '@'); at >= 0 {
		userPart := s[:at]
		hostPart = s[at+1:]

		user, password, hasPassword, err := splitOnce(userPart, "user")
		if err != nil {
			return Settings{}, err
		}
		if user == "" {
			return Settings{}, ErrInvalidProxy.Msg("proxy user is empty")
		}
		settings.Username = user
		if hasPassword {
			settings.Password = password
		}
	}

	host, portText, hasPort, err := splitOnce(hostPart, "host")
	if err != nil {
		return Settings{}, err
	}
	if host == "" {
		return Settings{}, ErrInvalidProxy.Msg("proxy host is required")
	}
	settings.Host = host
	settings.Port = DefaultPort
	if hasPort {
		port, err := strconv.Atoi(portText)
		if err != nil || port < 1 || port > 65535 {
			return Settings{}, ErrInvalidProxy.Msg("invalid proxy port: " + portText)
		}
		settings.Port = port
	}
	settings.Present = true
	return settings, nil
}

// splitOnce splits segment on at most one ':'.
func splitOnce(segment, what string) (left, right string, found bool, err error) {
	switch strings.Count(segment, ":") {
	case 0:
		return segment, "", false, nil
	case 1:
		left, right, _ = strings.Cut(segment, ":")
		return left, right, true, nil
	default:
		return "", "", false, ErrInvalidProxy.Msg("more than one ':' in proxy " + what)
	}
}

// Address returns host:port, or an empty string when no proxy is configured.
func (s Settings) Address() string {
	if !s.Present {
		return ""
	}
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URL returns the proxy URL with credentials, or nil when no proxy is configured.
func (s Settings) URL() *url.URL {
	if !s.Present {
		return nil
	}
	u := &url.URL{Scheme: "http", Host: s.Address()}
	if s.Username != "" {
		if s.Password != "" {
			u.User = url.UserPassword(s.Username, s.Password)
		} else {
			u.User = url.User(s.Username)
		}
	}
	return u
}

// ProxyFunc returns a function suitable for http.Transport.Proxy. It returns nil
// when no proxy is configured so the transport is left untouched.
func (s Settings) ProxyFunc() func(*http.Request) (*url.URL, error) {
	if !s.Present {
		return nil
	}
	return http.ProxyURL(s.URL())
}

// Apply sets the proxy on t. Absent settings leave t unchanged.
func (s Settings) Apply(t *http.Transport) {
	if t == nil || !s.Present {
		return
	}
	t.Proxy = s.ProxyFunc()
}

// String renders the settings without the password.
func (s Settings) String() string {
	if !s.Present {
		return ""
	}
	if s.Username != "" {
		return s.Username + "@" + s.Address()
	}
	return s.Address()
}
