package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure so callers can map it to an
// outcome (HTTP status, exit code) without string matching.
type Kind int

const (
	// KindProcessing covers mid-run failures: decode errors, detector
	// runtime errors, failure to open the video stream.
	KindProcessing Kind = iota
	// KindInput covers bad invocation parameters, rejected before any
	// frame is processed.
	KindInput
	// KindNotFound covers a missing video file.
	KindNotFound
	// KindConfig covers startup problems such as missing detector
	// weights. Nothing is processed when these occur.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindNotFound:
		return "not_found"
	case KindConfig:
		return "config"
	default:
		return "processing"
	}
}

// Error wraps a failure with its kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func inputErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindInput, Err: fmt.Errorf(format, args...)}
}

func notFoundErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Err: fmt.Errorf(format, args...)}
}

func processingError(err error) *Error {
	return &Error{Kind: KindProcessing, Err: err}
}

// KindOf extracts the kind from any error in the chain, defaulting to
// KindProcessing for errors the pipeline did not classify.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindProcessing
}
