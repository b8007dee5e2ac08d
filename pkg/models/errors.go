package models

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the orchestration pipeline
var (
	ErrInvalidDirectory     = errors.New("invalid directory")
	ErrServiceFailure       = errors.New("classifier service failure")
	ErrMalformedResponse    = errors.New("malformed classifier response")
	ErrRateLimited          = errors.New("usage limits exceeded")
	ErrPartialRenameFailure = errors.New("some renames failed")
	ErrMissingCredential    = errors.New("missing credential for online mode")
	ErrInvalidRequest       = errors.New("invalid request")
)

// OpError is a typed pipeline failure.
// errors.Is matches both Kind and the wrapped cause.
type OpError struct {
	Op   string
	Kind error
	Path string
	Err  error
}

func (e *OpError) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.Path != "" {
		msg += fmt.Sprintf(" (%s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewOpError builds an OpError
func NewOpError(op string, kind error, path string, err error) *OpError {
	return &OpError{Op: op, Kind: kind, Path: path, Err: err}
}

// KindOf returns the pipeline error kind carried by err, or nil
func KindOf(err error) error {
	for _, kind := range []error{
		ErrInvalidDirectory,
		ErrServiceFailure,
		ErrMalformedResponse,
		ErrRateLimited,
		ErrPartialRenameFailure,
		ErrMissingCredential,
		ErrInvalidRequest,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
