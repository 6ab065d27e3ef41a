package telemetry

import (
	"errors"
	"fmt"

	"github.com/btc-node-dashboard/internal/types"
)

// UnknownErrorMessage is shown when a failure cannot be described any better
const UnknownErrorMessage = "Unknown error occurred"

// Kind classifies why a fetch failed
type Kind int

const (
	KindTransport Kind = iota // the request never completed
	KindStatus                // completed with a non-2xx status
	KindParse                 // body was not valid JSON
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

type FetchError struct {
	Kind       Kind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindTransport:
		return fmt.Sprintf("request failed: %v", e.Err)
	case KindStatus:
		return fmt.Sprintf("API request failed with status %d", e.StatusCode)
	case KindParse:
		if e.Err != nil {
			return e.Err.Error()
		}
	}
	return UnknownErrorMessage
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Message normalizes err to the display string handed to a view. Only
// classified fetch failures and schema errors keep their own text.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Error()
	}
	var se *types.SchemaError
	if errors.As(err, &se) {
		return se.Error()
	}
	return UnknownErrorMessage
}

// result is the metrics label for err
func result(err error) string {
	if err == nil {
		return "success"
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind.String()
	}
	return KindUnknown.String()
}
