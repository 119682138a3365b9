package api

import (
	"errors"
	"fmt"
)

// failureKind classifies why a request could not be completed.
type failureKind int

const (
	// failInternal covers anything unexpected, including recovered panics.
	failInternal failureKind = iota
	// failSynthesis: the backend was unreachable, timed out or answered non-2xx.
	failSynthesis
	// failStorage: reading or writing the audio directory failed.
	failStorage
	// failNotFound: the requested audio is absent or expired.
	failNotFound
)

func (k failureKind) String() string {
	switch k {
	case failSynthesis:
		return "synthesis"
	case failStorage:
		return "storage"
	case failNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// callError tags a failure with its kind and the step that produced it.
type callError struct {
	kind failureKind
	op   string
	err  error
}

func (e *callError) Error() string {
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *callError) Unwrap() error {
	return e.err
}

// failure wraps err with a kind and operation name.
func failure(kind failureKind, op string, err error) error {
	return &callError{kind: kind, op: op, err: err}
}

// kindOf returns the kind of err, or failInternal for untagged errors.
func kindOf(err error) failureKind {
	var ce *callError
	if errors.As(err, &ce) {
		return ce.kind
	}
	return failInternal
}
