package trust

import "github.com/mgmtapi/mgmtapi-go/internal/common/apperrors"

var (
	ErrInvalidStore = apperrors.ErrConfiguration.New("invalid trust store")
	ErrLockTimeout  = apperrors.ErrStorage.New("timed out waiting for trust store lock")
	ErrCorruptFile  = apperrors.ErrStorage.New("trust store file is corrupt")
	ErrStoreIO      = apperrors.ErrStorage.New("trust store I/O failed")
	ErrConnectivity = apperrors.ErrTransport.New("no TLS handshake with server")
	ErrNotApproved  = apperrors.ErrTrustViolation.New("server fingerprint was not approved")
)
