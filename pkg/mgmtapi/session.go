package mgmtapi

import (
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/Masterminds/semver/v3"

	"github.com/mgmtapi/mgmtapi-go/pkg/types"
)

// Credentials authenticate a login. Either User and Password, or APIKey, is set.
type Credentials struct {
	User     string
	Password string
	APIKey   string
}

// Session is an authenticated login. The embedded Response is the login reply.
type Session struct {
	*Response

	Server     string
	Port       int
	SID        types.NullableString
	APIVersion types.NullableString
	Domain     string
	ReadOnly   bool

	loggedOut atomic.Bool
}

func newSession(server string, port int, domain string, resp *Response) (*Session, error) {
	sid, err := resp.Data.GetString("sid")
	switch {
	case errors.Is(err, types.ErrFieldMissing), err == nil && sid.IsNil():
		return nil, &LoginError{Response: resp, Err: ErrMissingSID}
	case err != nil:
		return nil, &LoginError{Response: resp, Err: ErrMissingSID.Msg("sid is not a string")}
	}

	s := &Session{
		Response: resp,
		Server:   server,
		Port:     port,
		SID:      sid,
		Domain:   domain,
	}
	if v, err := resp.Data.GetString("api-server-version"); err == nil {
		s.APIVersion = v
	}
	if ro, err := resp.Data.GetBool("read-only"); err == nil {
		s.ReadOnly = ro
	}
	return s, nil
}

// Address returns "server:port".
func (s *Session) Address() string {
	return s.Server + ":" + strconv.Itoa(s.Port)
}

// LoggedOut reports whether Logout was called on the session.
func (s *Session) LoggedOut() bool {
	return s.loggedOut.Load()
}

// APIVersionAtLeast reports whether the server API version of s is at least v.
// A session without a version never satisfies the check.
func APIVersionAtLeast(s *Session, v string) (bool, error) {
	want, err := semver.NewVersion(v)
	if err != nil {
		return false, ErrConfiguration.MsgErr("invalid API version "+v, err)
	}
	if s == nil || s.APIVersion.IsEmpty() {
		return false, nil
	}
	have, err := semver.NewVersion(s.APIVersion.String())
	if err != nil {
		return false, nil
	}
	return !have.LessThan(want), nil
}
