package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"

	"github.com/mgmtapi/mgmtapi-go/internal/common/apperrors"
)

// Classification codes for failures that never produced an HTTP response.
const (
	CodeFingerprintVerifyFailure = "fingerprint_verify_failure"
	CodeCommunicationTimeout     = "communication_timeout"
	CodeCommunicationError       = "communication_error"
	CodeGenericError             = "generic_error"
)

var (
	ErrInvalidURL          = apperrors.ErrConfiguration.New("invalid request URL")
	ErrFingerprintMismatch = apperrors.ErrTransport.New("server fingerprint mismatch").SetCode(CodeFingerprintVerifyFailure)
)

// Classify maps a transport failure onto one of the classification codes.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrFingerprintMismatch) {
		return CodeFingerprintVerifyFailure
	}
	var (
		verifyErr  *tls.CertificateVerificationError
		unknownErr x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
		recordErr  tls.RecordHeaderError
		netErr     net.Error
		opErr      *net.OpError
		dnsErr     *net.DNSError
	)
	switch {
	case errors.As(err, &verifyErr), errors.As(err, &unknownErr),
		errors.As(err, &hostErr), errors.As(err, &invalidErr):
		return CodeFingerprintVerifyFailure
	case errors.Is(err, context.DeadlineExceeded):
		return CodeCommunicationTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return CodeCommunicationTimeout
	case errors.As(err, &opErr), errors.As(err, &dnsErr), errors.As(err, &recordErr),
		errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return CodeCommunicationError
	}
	return CodeGenericError
}
