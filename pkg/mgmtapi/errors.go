package mgmtapi

import (
	"github.com/mgmtapi/mgmtapi-go/internal/common/apperrors"
)

// Category roots. Every error returned by this module matches exactly one of them
// through errors.Is.
var (
	ErrConfiguration  = apperrors.ErrConfiguration
	ErrTransport      = apperrors.ErrTransport
	ErrAuth           = apperrors.ErrAuth
	ErrTrustViolation = apperrors.ErrTrustViolation
	ErrStorage        = apperrors.ErrStorage
)

var (
	ErrInvalidConfig        = ErrConfiguration.New("invalid client configuration")
	ErrInvalidCommand       = ErrConfiguration.New("invalid command name")
	ErrInvalidPayload       = ErrConfiguration.New("payload is not a JSON object")
	ErrNoSession            = ErrConfiguration.New("no session")
	ErrSessionClosed        = ErrConfiguration.New("session is logged out")
	ErrRootLoginUnavailable = ErrConfiguration.New("login as root is only available on the management server")
	ErrMissingSID           = ErrAuth.New("login response has no sid")
	ErrTaskTimeout          = ErrTransport.New("timed out waiting for task").SetCode("communication_timeout")
)

// LoginError is returned when a login attempt does not produce a session. Response
// holds the server or transport outcome that caused the failure and may be nil when
// the attempt never reached the server.
type LoginError struct {
	Response *Response
	Err      error
}

func (e *LoginError) Error() string {
	if e.Response != nil && e.Response.ErrorMessage != "" {
		return e.Err.Error() + ": " + e.Response.ErrorMessage
	}
	return e.Err.Error()
}

func (e *LoginError) Unwrap() error {
	return e.Err
}
