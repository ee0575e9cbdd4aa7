// Package task folds provider responses onto a canonical task state.
package task

import "fmt"

// State is the canonical task state reported to callers.
type State string

const (
	Pending    State = "pending"
	Processing State = "processing"
	Done       State = "done"
	NotFound   State = "not_found"
	Expired    State = "expired"
	Error      State = "error"
)

// Terminal reports whether no further polling can change the state.
func (s State) Terminal() bool {
	switch s {
	case Done, NotFound, Expired, Error:
		return true
	}
	return false
}

// Kind names a generation flow.
type Kind string

const (
	TextToVideo  Kind = "text-to-video"
	ImageToVideo Kind = "image-to-video"
	TextToImage  Kind = "text-to-image"
	ImageToImage Kind = "image-to-image"
	ImageEdit    Kind = "image-edit"
)

// Vocabulary maps raw provider status strings to states. Strings that are not
// listed, and a missing status, mean Processing.
type Vocabulary map[string]State

// DefaultVocabulary covers every status the visual API is known to return.
var DefaultVocabulary = Vocabulary{
	"done":       Done,
	"in_queue":   Processing,
	"generating": Processing,
	"not_found":  NotFound,
	"expired":    Expired,
}

func (v Vocabulary) lookup(raw string) State {
	if v == nil {
		v = DefaultVocabulary
	}
	if s, ok := v[raw]; ok {
		return s
	}
	return Processing
}

// StatusMessage is a short human description of a raw in-progress status.
func StatusMessage(raw string) string {
	switch raw {
	case "in_queue":
		return "task submitted, waiting in queue"
	case "generating":
		return "generating"
	case "":
		return "processing"
	}
	return fmt.Sprintf("current status: %s", raw)
}
