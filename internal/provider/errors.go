package provider

import (
	"errors"
	"fmt"
)

// Kind classifies a FetchError.
type Kind int

const (
	KindTimeout Kind = iota + 1
	KindSourceFailed
	KindParseFailed
	KindExtraction
	KindInvalid
)

var (
	ErrTimeout      = errors.New("timed out")
	ErrSourceFailed = errors.New("source failed")
	ErrParseFailed  = errors.New("unparseable output")
	ErrExtraction   = errors.New("invalid items path")
	ErrInvalid      = errors.New("invalid data source")
)

func (k Kind) sentinel() error {
	switch k {
	case KindTimeout:
		return ErrTimeout
	case KindSourceFailed:
		return ErrSourceFailed
	case KindParseFailed:
		return ErrParseFailed
	case KindExtraction:
		return ErrExtraction
	default:
		return ErrInvalid
	}
}

func (k Kind) String() string { return k.sentinel().Error() }

// FetchError is a page-level fetch failure.
type FetchError struct {
	Kind   Kind
	Source string
	// Detail carries diagnostic text such as captured stderr or a response
	// body excerpt.
	Detail string
	Err    error
}

func (e *FetchError) Error() string {
	msg := e.Kind.String()
	if e.Source != "" {
		msg = e.Source + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil && e.Detail == "" {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *FetchError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// Retryable reports whether retrying the same request may succeed.
func (e *FetchError) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindSourceFailed
}

// AsFetchError converts any error into a *FetchError, classifying unknown
// errors as source failures.
func AsFetchError(err error) *FetchError {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &FetchError{Kind: KindSourceFailed, Err: err}
}
