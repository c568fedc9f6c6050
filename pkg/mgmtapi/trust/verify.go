package trust

import (
	"context"
	"strings"
)

// Approver decides whether an unverified fingerprint may be trusted. Fingerprints
// are passed in the colon-grouped form produced by FormatFingerprint.
type Approver interface {
	// PromptFirstUse is asked when nothing is stored for server.
	PromptFirstUse(ctx context.Context, server, fingerprint string) (bool, error)
	// PromptMismatch is asked when the live fingerprint differs from the stored one.
	PromptMismatch(ctx context.Context, server, stored, live string) (bool, error)
}

// AutoAccept approves every fingerprint. Use only for unattended setups where the
// network path to the server is trusted.
type AutoAccept struct{}

func (AutoAccept) PromptFirstUse(context.Context, string, string) (bool, error) { return true, nil }

func (AutoAccept) PromptMismatch(context.Context, string, string, string) (bool, error) {
	return true, nil
}

// Decline rejects every fingerprint that is not already stored.
type Decline struct{}

func (Decline) PromptFirstUse(context.Context, string, string) (bool, error) { return false, nil }

func (Decline) PromptMismatch(context.Context, string, string, string) (bool, error) {
	return false, nil
}

// Verify fetches the live fingerprint of host:port and compares it to the stored
// one. Unknown or changed fingerprints are stored only after approval; declining
// returns ErrNotApproved. The live fingerprint is returned on success.
func (s *Store) Verify(ctx context.Context, host string, port int, approver Approver, opts FetchOptions) (string, error) {
	live, err := FetchServerFingerprint(ctx, host, port, opts)
	if err != nil {
		return "", err
	}
	stored, ok, err := s.Get(ctx, host, port)
	if err != nil {
		return "", err
	}
	if ok && strings.EqualFold(stored, live) {
		return live, nil
	}

	if approver == nil {
		approver = Decline{}
	}
	server := Key(host, port)
	var approved bool
	if ok {
		s.logger.Warn().Str("server", server).Msg("server fingerprint changed")
		approved, err = approver.PromptMismatch(ctx, server, FormatFingerprint(stored), FormatFingerprint(live))
	} else {
		approved, err = approver.PromptFirstUse(ctx, server, FormatFingerprint(live))
	}
	if err != nil {
		return "", err
	}
	if !approved {
		return "", ErrNotApproved.Msg("fingerprint for " + server + " was not approved")
	}
	if _, err := s.Save(ctx, host, port, live); err != nil {
		return "", err
	}
	return live, nil
}

// FormatFingerprint renders a hex digest in upper case with ':' between every pair
// of characters.
func FormatFingerprint(fp string) string {
	fp = strings.ToUpper(strings.TrimSpace(fp))
	var b strings.Builder
	b.Grow(len(fp) + len(fp)/2)
	for i := 0; i < len(fp); i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		end := min(i+2, len(fp))
		b.WriteString(fp[i:end])
	}
	return b.String()
}

var (
	_ Approver = AutoAccept{}
	_ Approver = Decline{}
)
