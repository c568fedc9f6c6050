package mgmtapi

import (
	"context"
	"errors"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mgmtapi/mgmtapi-go/internal/common/apperrors"
	"github.com/mgmtapi/mgmtapi-go/internal/common/httpclient"
	"github.com/mgmtapi/mgmtapi-go/internal/common/logtrace"
	"github.com/mgmtapi/mgmtapi-go/pkg/types"
)

// SIDHeader carries the session id on every call after login.
const SIDHeader = "X-chkp-sid"

// Call issues command on the server of session s. payload may be nil, a map, a
// types.Document, raw JSON, or any value that marshals to a JSON object.
//
// When waitForTask is set and the reply names a task ("task-id") or several
// ("tasks"), Call waits for them and returns the task status Response instead.
// show-task itself is never waited on.
//
// Transport and server failures are reported in the Response. The returned error
// is set for invalid arguments, a logged-out session, trust store failures and
// cancellation.
func (c *Client) Call(ctx context.Context, s *Session, command string, payload any, waitForTask bool) (*Response, error) {
	if err := checkSession(s); err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, s.Server, s.Port, s.SID.String(), true, command, payload)
	if err != nil {
		return nil, err
	}
	if !waitForTask || !resp.Success || command == showTaskCommand {
		return resp, nil
	}
	return c.awaitFromResponse(ctx, s, resp)
}

func checkSession(s *Session) error {
	if s == nil {
		return ErrNoSession
	}
	if s.LoggedOut() {
		return ErrSessionClosed.Msg("session " + s.Address() + " is logged out")
	}
	return nil
}

func (c *Client) awaitFromResponse(ctx context.Context, s *Session, resp *Response) (*Response, error) {
	if id, err := resp.Data.GetString("task-id"); err == nil && !id.IsEmpty() {
		return c.AwaitTask(ctx, s, id.String())
	}
	tasks, err := resp.Data.GetArray("tasks")
	if err != nil || len(tasks) == 0 {
		return resp, nil
	}
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if id := t.Get("task-id"); id.Type == gjson.String && id.String() != "" {
			ids = append(ids, id.String())
		}
	}
	if len(ids) == 0 {
		return resp, nil
	}
	return c.AwaitTasks(ctx, s, ids)
}

func validateCommand(command string) error {
	if err := validate.Var(command, "required,printascii,excludesall=/?#%\\ "); err != nil {
		return ErrInvalidCommand.Msg("invalid command name " + `"` + command + `"`)
	}
	return nil
}

func toDocument(payload any) (types.Document, error) {
	doc, err := types.DocumentFrom(payload)
	if err != nil {
		return types.Document{}, ErrInvalidPayload.MsgErr("cannot encode payload", err)
	}
	return doc, nil
}

// send performs one request. withSID controls whether the session header is sent.
func (c *Client) send(ctx context.Context, server string, p int, sid string, withSID bool, command string, payload any) (*Response, error) {
	if err := validateCommand(command); err != nil {
		return nil, err
	}
	doc, err := toDocument(payload)
	if err != nil {
		return nil, err
	}

	ctx, requestID := logtrace.WithRequestID(ctx)
	log := logtrace.Logger(ctx, c.logger).With().
		Str("server", server).
		Int("port", p).
		Str("command", command).
		Logger()

	headers := map[string]string{}
	if withSID {
		headers[SIDHeader] = sid
	}

	record := CallRecord{
		RequestID: requestID,
		Command:   command,
		Payload:   scrub(doc),
		Headers:   headers,
		Time:      time.Now(),
	}

	t, err := c.transport(ctx, server, p)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		if !errors.Is(err, ErrTransport) {
			return nil, err
		}
		resp := newTransportResponse(transportCode(err), err.Error())
		c.record(record, resp)
		log.Debug().Err(err).Msg("transport setup failed")
		return resp, nil
	}
	record.URL, _ = t.URL(c.commandPath(command))

	log.Debug().Msg("api call")
	start := time.Now()
	raw, err := t.DoRequest(ctx, httpclient.RequestOptions{
		Path:    c.commandPath(command),
		Headers: headers,
		Body:    doc.Raw(),
	})

	var resp *Response
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		resp = newTransportResponse(httpclient.Classify(err), err.Error())
		log.Debug().Err(err).Str("code", resp.Code).Msg("api call failed")
	} else {
		resp = newHTTPResponse(raw.StatusCode, raw.Body)
		log.Debug().
			Int("status", raw.StatusCode).
			Dur("elapsed", time.Since(start)).
			Bool("success", resp.Success).
			Msg("api call done")
	}
	c.record(record, resp)
	return resp, nil
}

// transportCode classifies failures raised while preparing the transport, such as
// an unreachable server during automatic fingerprint acceptance.
func transportCode(err error) string {
	if code := apperrors.CodeOf(err); code != "" {
		return code
	}
	return httpclient.Classify(err)
}
