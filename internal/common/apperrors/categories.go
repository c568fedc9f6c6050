package apperrors

// Category roots. Every error produced by the library derives from exactly one of
// these, so callers can branch with errors.Is regardless of the concrete package.
var (
	// ErrConfiguration covers bad arguments, paths, proxy strings and port text.
	ErrConfiguration = New("configuration error").SetCode("configuration_error")

	// ErrTransport covers DNS, connect, timeout and TLS trust failures.
	ErrTransport = New("transport error").SetCode("communication_error")

	// ErrAuth is returned when a login attempt is rejected or cannot complete.
	ErrAuth = New("authentication failed").SetCode("login_failed")

	// ErrTrustViolation is returned when a server fingerprint is not approved.
	ErrTrustViolation = New("server fingerprint not trusted").SetCode("trust_violation")

	// ErrStorage covers trust record file access and lock acquisition.
	ErrStorage = New("storage error").SetCode("storage_error")
)
