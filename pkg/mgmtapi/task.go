package mgmtapi

import (
	"context"
	"errors"

	"github.com/avast/retry-go/v4"
	"github.com/mitchellh/mapstructure"

	"github.com/mgmtapi/mgmtapi-go/pkg/types"
)

// Task status values. Only TaskInProgress is not terminal.
const (
	TaskInProgress         = "in progress"
	TaskSucceeded          = "succeeded"
	TaskFailed             = "failed"
	TaskPartiallySucceeded = "partially succeeded"
)

const showTaskCommand = "show-task"

// maxShowTaskFailures is how many consecutive failed show-task calls are
// tolerated before the failure is returned.
const maxShowTaskFailures = 5

var errTaskPending = errors.New("task in progress")

// Task is one entry of a show-task reply.
type Task struct {
	ID       string `mapstructure:"task-id"`
	Name     string `mapstructure:"task-name"`
	Status   string `mapstructure:"status"`
	Progress int    `mapstructure:"progress-percentage"`
	Details  []any  `mapstructure:"task-details"`
}

// Terminal reports whether the task has finished.
func (t Task) Terminal() bool {
	return t.Status != TaskInProgress
}

// Failed reports whether the task finished unsuccessfully.
func (t Task) Failed() bool {
	return t.Status == TaskFailed || t.Status == TaskPartiallySucceeded
}

// Tasks decodes the "tasks" array of a show-task reply.
func (r *Response) Tasks() ([]Task, error) {
	if !r.Data.Has("tasks") {
		return nil, nil
	}
	raw, ok := r.Data.Map()["tasks"].([]any)
	if !ok {
		return nil, types.ErrFieldType
	}
	var tasks []Task
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &tasks,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, err
	}
	return tasks, nil
}

// AwaitTask polls show-task until the task leaves "in progress". A task that
// ended as failed or partially succeeded yields a Response with Success false and
// the task details intact.
func (c *Client) AwaitTask(ctx context.Context, s *Session, taskID string) (*Response, error) {
	if err := checkSession(s); err != nil {
		return nil, err
	}
	return c.pollTasks(ctx, s, []string{taskID})
}

// AwaitTasks waits for every task in turn, then returns one show-task Response
// covering all of them.
func (c *Client) AwaitTasks(ctx context.Context, s *Session, taskIDs []string) (*Response, error) {
	if err := checkSession(s); err != nil {
		return nil, err
	}
	if len(taskIDs) == 0 {
		return nil, ErrInvalidPayload.Msg("no task ids")
	}
	for _, id := range taskIDs {
		if _, err := c.pollTasks(ctx, s, []string{id}); err != nil {
			return nil, err
		}
	}
	resp, err := c.showTask(ctx, s, taskIDs)
	if err != nil {
		return nil, err
	}
	markTaskFailures(resp)
	return resp, nil
}

func (c *Client) showTask(ctx context.Context, s *Session, ids []string) (*Response, error) {
	var taskID any = ids
	if len(ids) == 1 {
		taskID = ids[0]
	}
	return c.send(ctx, s.Server, s.Port, s.SID.String(), true, showTaskCommand, map[string]any{
		"task-id":       taskID,
		"details-level": "full",
	})
}

func (c *Client) pollTasks(ctx context.Context, s *Session, ids []string) (*Response, error) {
	waitCtx := ctx
	if c.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.cfg.TaskTimeout)
		defer cancel()
	}

	var (
		last     *Response
		fatal    error
		failures int
	)
	_ = retry.Do(func() error {
		resp, err := c.showTask(waitCtx, s, ids)
		if err != nil {
			fatal = err
			return retry.Unrecoverable(err)
		}
		last = resp
		if !resp.Success {
			failures++
			if failures >= maxShowTaskFailures {
				return nil
			}
			return errTaskPending
		}
		failures = 0

		tasks, err := resp.Tasks()
		if err != nil {
			return nil
		}
		for _, t := range tasks {
			if !t.Terminal() {
				c.logger.Debug().Str("task", t.ID).Int("progress", t.Progress).Msg("task in progress")
				return errTaskPending
			}
		}
		return nil
	},
		retry.Context(waitCtx),
		retry.Attempts(0),
		retry.Delay(c.cfg.TaskPollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(func(err error) bool { return errors.Is(err, errTaskPending) }),
		retry.LastErrorOnly(true),
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if errors.Is(fatal, context.DeadlineExceeded) || waitCtx.Err() != nil {
		return last, ErrTaskTimeout.Msg("task did not finish within " + c.cfg.TaskTimeout.String())
	}
	if fatal != nil {
		return nil, fatal
	}
	if last == nil {
		return nil, ErrTaskTimeout
	}
	markTaskFailures(last)
	return last, nil
}

func markTaskFailures(resp *Response) {
	if !resp.Success {
		return
	}
	tasks, err := resp.Tasks()
	if err != nil {
		return
	}
	for _, t := range tasks {
		if t.Failed() {
			resp.Success = false
			if resp.ErrorMessage == "" {
				resp.ErrorMessage = "task " + t.ID + " " + t.Status
			}
		}
	}
}
