package viewstate

import (
	"io"
	"time"
)

// UnknownErrorMessage is shown when a load fails without a usable description
const UnknownErrorMessage = "Unknown error occurred"

// Phase is the lifecycle position of a mounted view
type Phase int

const (
	Loading Phase = iota
	Ready
	Error
)

func (p Phase) String() string {
	switch p {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Phases lists every phase, in order
var Phases = []Phase{Loading, Ready, Error}

type event int

const (
	succeeded event = iota
	failed
)

// Ready and Error are terminal for a mount; only a new mount leaves them.
var transitions = map[Phase]map[event]Phase{
	Loading: {
		succeeded: Ready,
		failed:    Error,
	},
}

func next(from Phase, ev event) (Phase, bool) {
	to, ok := transitions[from][ev]
	return to, ok
}

// State is an immutable view state. Data is set only in Ready, Message only
// in Error.
type State[T any] struct {
	Phase   Phase
	Data    T
	Message string
	Updated time.Time
}

// Renderer draws one view for each phase
type Renderer[T any] interface {
	RenderLoading(w io.Writer) error
	RenderError(w io.Writer, message string) error
	RenderReady(w io.Writer, data T) error
}

// Render draws exactly one of: the loading indicator, the error banner, or
// the ready view.
func Render[T any](w io.Writer, s State[T], r Renderer[T]) error {
	switch s.Phase {
	case Ready:
		return r.RenderReady(w, s.Data)
	case Error:
		return r.RenderError(w, s.Message)
	default:
		return r.RenderLoading(w)
	}
}
