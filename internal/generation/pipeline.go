package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	v1 "github.com/jordanharrington/visualgate/api/v1"
	"github.com/jordanharrington/visualgate/internal/json"
	"github.com/jordanharrington/visualgate/internal/remote"
	"github.com/jordanharrington/visualgate/internal/task"
	"github.com/tidwall/sjson"
	"golang.org/x/sync/singleflight"
)

// Caller sends one signed call and returns the normalized envelope.
type Caller interface {
	Call(ctx context.Context, action, version string, body []byte) (*remote.Envelope, error)
}

// Pipeline turns inbound requests into remote calls and classified outcomes.
type Pipeline struct {
	caller Caller
	newID  func() string
	polls  singleflight.Group
	log    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithIDFunc replaces the generator for synthetic task ids.
func WithIDFunc(fn func() string) Option {
	return func(p *Pipeline) { p.newID = fn }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

func NewPipeline(c Caller, opts ...Option) *Pipeline {
	p := &Pipeline{
		caller: c,
		newID:  uuid.NewString,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit validates in, sends it through f and classifies the answer.
// Asynchronous flows come back Pending with the remote task id; synchronous
// flows come back Done with a synthetic id.
func (p *Pipeline) Submit(ctx context.Context, f Flow, in v1.GenerateRequest) (task.Outcome, error) {
	payload, err := f.Body(in)
	if err != nil {
		return task.Outcome{}, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return task.Outcome{}, fmt.Errorf("encode %s body: %w", f.Kind, err)
	}
	if body, err = sjson.SetBytes(body, "req_key", f.ReqKey); err != nil {
		return task.Outcome{}, fmt.Errorf("stamp req_key: %w", err)
	}

	env, err := p.caller.Call(ctx, f.Action, f.Version, body)
	if err != nil {
		p.log.WarnContext(ctx, "submit failed",
			slog.String("kind", string(f.Kind)),
			slog.Any("error", err))
		return task.Outcome{State: task.Error, Message: err.Error()}, err
	}

	out := task.ClassifySubmit(env, f.Locator)
	switch {
	case out.State == task.Error:
		return out, &remote.RejectionError{Message: out.Message, RequestID: env.RequestID}
	case f.Sync && out.State != task.Done:
		out.State = task.Error
		out.Message = "remote returned no generated image"
		return out, &remote.RejectionError{Message: out.Message, RequestID: env.RequestID}
	case f.Sync:
		out.TaskID = f.IDPrefix + p.newID()
	}

	p.log.InfoContext(ctx, "task submitted",
		slog.String("kind", string(f.Kind)),
		slog.String("task_id", out.TaskID),
		slog.String("state", string(out.State)),
		slog.String("request_id", env.RequestID))
	return out, nil
}

// Poll queries taskID through pf. Concurrent polls for the same task share
// one remote call. NotFound and Expired come back as *TerminalError.
func (p *Pipeline) Poll(ctx context.Context, pf PollFlow, taskID string) (task.Outcome, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return task.Outcome{}, &ValidationError{Field: "task_id", Message: "is required"}
	}
	body, err := pollBody(pf, taskID)
	if err != nil {
		return task.Outcome{}, err
	}

	// The shared call outlives any one waiter; each waiter only stops on its
	// own context. The caller's per-call timeout still bounds the call.
	ch := p.polls.DoChan(pf.Action+"/"+taskID, func() (any, error) {
		return p.caller.Call(context.WithoutCancel(ctx), pf.Action, pf.Version, body)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		err := ctx.Err()
		return task.Outcome{State: task.Error, Message: err.Error()}, err
	case res = <-ch:
	}
	if res.Err != nil {
		return task.Outcome{State: task.Error, Message: res.Err.Error()}, res.Err
	}
	env := res.Val.(*remote.Envelope)
	shared := res.Shared

	out := task.ClassifyPoll(env, pf.Locator, pf.Vocabulary)
	if out.TaskID == "" {
		out.TaskID = taskID
	}

	p.log.DebugContext(ctx, "task polled",
		slog.String("flow", pf.Name),
		slog.String("task_id", taskID),
		slog.String("status", out.RawStatus),
		slog.String("state", string(out.State)),
		slog.Bool("shared", shared))

	switch out.State {
	case task.NotFound, task.Expired:
		return out, &TerminalError{State: out.State, Message: out.Message}
	case task.Error:
		return out, &remote.RejectionError{Message: out.Message, RequestID: env.RequestID}
	}
	return out, nil
}

func pollBody(pf PollFlow, taskID string) ([]byte, error) {
	body := []byte(`{}`)
	var err error
	if body, err = sjson.SetBytes(body, "req_key", pf.ReqKey); err != nil {
		return nil, fmt.Errorf("stamp req_key: %w", err)
	}
	if body, err = sjson.SetBytes(body, "task_id", taskID); err != nil {
		return nil, fmt.Errorf("stamp task_id: %w", err)
	}
	if pf.ReqJSON != "" {
		if body, err = sjson.SetBytes(body, "req_json", pf.ReqJSON); err != nil {
			return nil, fmt.Errorf("stamp req_json: %w", err)
		}
	}
	return body, nil
}
