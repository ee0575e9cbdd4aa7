package task

import (
	"github.com/jordanharrington/visualgate/internal/remote"
	"github.com/tidwall/gjson"
)

// ResultType is the media type of a finished task.
type ResultType string

const (
	Video ResultType = "video"
	Image ResultType = "image"
)

// Locator says where a finished payload keeps its media URLs. Field may hold a
// single string or an array of strings.
type Locator struct {
	Type  ResultType
	Field string
}

var (
	VideoLocator = Locator{Type: Video, Field: "video_url"}
	ImageLocator = Locator{Type: Image, Field: "image_urls"}
)

// Extract returns the non-empty URLs under the locator's field.
func (l Locator) Extract(payload gjson.Result) []string {
	v := payload.Get(l.Field)
	if !v.Exists() {
		return nil
	}
	var urls []string
	if v.IsArray() {
		for _, u := range v.Array() {
			if s := u.String(); s != "" {
				urls = append(urls, s)
			}
		}
		return urls
	}
	if s := v.String(); s != "" {
		urls = append(urls, s)
	}
	return urls
}

// Outcome is the classified view of one provider response.
type Outcome struct {
	State       State
	TaskID      string
	RawStatus   string
	URLs        []string
	Description string
	Message     string
}

// URL is the first result URL, if any.
func (o Outcome) URL() string {
	if len(o.URLs) == 0 {
		return ""
	}
	return o.URLs[0]
}

// ClassifySubmit classifies the response to a submission. Synchronous flows
// answer with the result directly and are Done; asynchronous flows answer with
// a task id and are Pending.
func ClassifySubmit(env *remote.Envelope, loc Locator) Outcome {
	if !env.OK {
		return Outcome{State: Error, Message: env.ErrorMessage}
	}
	out := Outcome{
		TaskID:      env.Payload.Get("task_id").String(),
		Description: env.Payload.Get("rephraser_result").String(),
	}
	if urls := loc.Extract(env.Payload); len(urls) > 0 {
		out.State = Done
		out.URLs = urls
		return out
	}
	if out.TaskID != "" {
		out.State = Pending
		return out
	}
	out.State = Error
	out.Message = "remote returned neither a task id nor a result"
	return out
}

// ClassifyPoll classifies the response to a status query. A "done" status
// without any result URL is treated as still processing.
func ClassifyPoll(env *remote.Envelope, loc Locator, vocab Vocabulary) Outcome {
	if !env.OK {
		return Outcome{State: Error, Message: env.ErrorMessage}
	}
	raw := env.Payload.Get("status").String()
	out := Outcome{
		TaskID:    env.Payload.Get("task_id").String(),
		RawStatus: raw,
		State:     vocab.lookup(raw),
	}

	switch out.State {
	case Done:
		out.URLs = loc.Extract(env.Payload)
		if len(out.URLs) == 0 {
			out.State = Processing
			out.Message = StatusMessage(raw)
		}
	case NotFound:
		out.Message = "task not found or expired, please resubmit"
	case Expired:
		out.Message = "task expired, please resubmit"
	case Error:
		out.Message = "task failed with status " + raw
	case Pending, Processing:
		out.Message = StatusMessage(raw)
	}
	return out
}
