package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/mgmtapi/mgmtapi-go/pkg/mgmtapi/trust"
)

// stdin feeds interactive prompts. Tests replace it.
var stdin io.Reader = os.Stdin

// prompter asks yes/no questions and reads passwords. It approves fingerprints
// for the trust store.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int // terminal to read passwords from without echo, -1 if none
}

var _ trust.Approver = (*prompter)(nil)

func newPrompter(out io.Writer) *prompter {
	fd := -1
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd = int(f.Fd())
	}
	return &prompter{in: bufio.NewReader(stdin), out: out, fd: fd}
}

func (p *prompter) PromptFirstUse(_ context.Context, server, fingerprint string) (bool, error) {
	fmt.Fprintf(p.out, "The authenticity of server '%s' can't be established.\n", server)
	fmt.Fprintf(p.out, "Certificate fingerprint (SHA-1): %s\n", fingerprint)
	return p.confirm("Are you sure you want to trust this server (yes/no)? ")
}

func (p *prompter) PromptMismatch(_ context.Context, server, stored, live string) (bool, error) {
	warnLabel.Fprintf(p.out, "WARNING: the certificate fingerprint of '%s' has changed!\n", server)
	fmt.Fprintf(p.out, "Stored fingerprint: %s\n", stored)
	fmt.Fprintf(p.out, "Server fingerprint: %s\n", live)
	fmt.Fprintln(p.out, "Someone may be intercepting the connection, or the server certificate was replaced.")
	return p.confirm("Do you want to trust the new fingerprint (yes/no)? ")
}

// confirm repeats question until the answer is yes or no. End of input is a no.
func (p *prompter) confirm(question string) (bool, error) {
	for {
		fmt.Fprint(p.out, question)
		line, err := p.in.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "yes", "y":
			return true, nil
		case "no", "n":
			return false, nil
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(p.out)
			return false, nil
		}
		if err != nil {
			return false, err
		}
		fmt.Fprintln(p.out, "Please type 'yes' or 'no'.")
	}
}

// password reads a secret, without echo when input is a terminal.
func (p *prompter) password(label string) (string, error) {
	fmt.Fprint(p.out, label)
	if p.fd >= 0 {
		b, err := term.ReadPassword(p.fd)
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("unable to read password: %w", err)
		}
		return string(b), nil
	}
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("unable to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
