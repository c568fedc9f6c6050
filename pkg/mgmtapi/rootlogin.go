package mgmtapi

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/mgmtapi/mgmtapi-go/internal/common/cmdexec"
	"github.com/mgmtapi/mgmtapi-go/pkg/types"
)

// LocalServer is the address used for sessions opened with LoginAsRoot.
const LocalServer = "127.0.0.1"

// LoginAsRoot opens a session without credentials through the local mgmt_cli
// tool. It is only available on the management server itself.
func (c *Client) LoginAsRoot(ctx context.Context, opts ...LoginOption) (*Session, error) {
	env := c.cfg.Environment
	if !env.OnManagementServer() || env.CPDir == "" {
		return nil, ErrRootLoginUnavailable
	}
	bin := filepath.Join(env.CPDir, "bin", "mgmt_cli")
	if !cmdexec.Executable(bin) {
		return nil, ErrRootLoginUnavailable.Msg(bin + " not found")
	}

	p, err := c.ResolvePort(ctx)
	if err != nil {
		return nil, err
	}
	req := newLoginRequest(opts)
	args := []string{"login", "-r", "true", "-f", "json"}
	if c.cfg.Port > 0 {
		args = append(args, "--port", strconv.Itoa(p))
	}
	if req.domain != "" {
		args = append(args, "-d", req.domain)
	}
	args = append(args, req.cliArgs()...)

	c.logger.Debug().Str("command", bin).Msg("login as root")
	out, err := c.cfg.Runner.Run(ctx, bin, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &LoginError{
			Response: newTransportResponse(CodeGenericError, err.Error()),
			Err:      ErrAuth.MsgErr("mgmt_cli login failed", err),
		}
	}
	data, err := types.ParseDocument(out)
	if err != nil {
		return nil, &LoginError{
			Response: newTransportResponse(CodeGenericError, "mgmt_cli returned invalid JSON"),
			Err:      ErrAuth.MsgErr("mgmt_cli login returned invalid JSON", err),
		}
	}
	resp := &Response{Success: true, StatusCode: 200, Data: data}
	return newSession(LocalServer, p, req.domain, resp)
}

// cliArgs renders the optional login fields as mgmt_cli "key value" pairs.
func (r *loginRequest) cliArgs() []string {
	var args []string
	if r.readOnly {
		args = append(args, "read-only", "true")
	}
	if r.continueLastSession {
		args = append(args, "continue-last-session", "true")
	}
	if r.sessionName != "" {
		args = append(args, "session-name", r.sessionName)
	}
	if r.sessionTimeout > 0 {
		args = append(args, "session-timeout", strconv.Itoa(r.sessionTimeout))
	}
	keys := make([]string, 0, len(r.extra))
	for k := range r.extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, k, fmt.Sprint(r.extra[k]))
	}
	return args
}
