package port

import (
	"bufio"
	"bytes"
	"context"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/mgmtapi/mgmtapi-go/internal/common/cmdexec"
)

// DefaultShellPath is the management shell queried for the web SSL port.
const DefaultShellPath = "/bin/clish"

// APIGetPortProber runs the local api_get_port helper in JSON output mode.
type APIGetPortProber struct {
	Env    Environment
	Runner cmdexec.Runner
}

func (p *APIGetPortProber) Name() string { return "api_get_port" }

// Probe implements Prober.
func (p *APIGetPortProber) Probe(ctx context.Context) (string, bool, error) {
	if p.Env.MDSFWDir == "" || p.Runner == nil {
		return "", false, nil
	}
	python := filepath.Join(p.Env.MDSFWDir, "Python", "bin", "python3")
	script := filepath.Join(p.Env.MDSFWDir, "scripts", "api_get_port.py")
	if !cmdexec.Executable(python) || !cmdexec.Executable(script) {
		return "", false, nil
	}
	out, err := p.Runner.Run(ctx, python, script, "-f", "json")
	if err != nil {
		return "", false, err
	}
	value, ok := ParseHelperOutput(out)
	return value, ok, nil
}

// ShellSSLPortProber asks the management shell for the configured web SSL port.
type ShellSSLPortProber struct {
	Path   string
	Runner cmdexec.Runner
}

func (p *ShellSSLPortProber) Name() string { return "web_ssl_port" }

// Probe implements Prober.
func (p *ShellSSLPortProber) Probe(ctx context.Context) (string, bool, error) {
	path := p.Path
	if path == "" {
		path = DefaultShellPath
	}
	if p.Runner == nil || !cmdexec.Executable(path) {
		return "", false, nil
	}
	out, err := p.Runner.Run(ctx, path, "-c", "show web ssl-port")
	if err != nil {
		return "", false, err
	}
	line := lastLine(out)
	if line == "" {
		return "", false, nil
	}
	if value, ok := parseLegacyLine(line); ok {
		return value, true, nil
	}
	fields := strings.Fields(line)
	return fields[len(fields)-1], true, nil
}

// ParseHelperOutput extracts the port from helper output: either a JSON object with
// an external_port field, or a legacy line of two ';'-separated fields.
func ParseHelperOutput(out []byte) (string, bool) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return "", false
	}
	if gjson.ValidBytes(trimmed) {
		r := gjson.GetBytes(trimmed, "external_port")
		if !r.Exists() || r.Type == gjson.Null {
			return "", false
		}
		return r.String(), true
	}
	return parseLegacyLine(lastLine(trimmed))
}

func parseLegacyLine(line string) (string, bool) {
	parts := strings.Split(line, ";")
	if len(parts) != 2 {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func lastLine(out []byte) string {
	var last string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			last = l
		}
	}
	return last
}
