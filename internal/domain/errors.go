package domain

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline errors so callers can pick a recovery
// strategy without string matching.
type Kind string

const (
	// KindInput: unreadable/corrupt file, unsupported mode or format,
	// zero pages. Fatal before any page work starts.
	KindInput Kind = "input"
	// KindPage: a single page's render or inference step failed.
	// Recovered locally on the PDF path, fatal for single images.
	KindPage Kind = "page"
	// KindBackend: the inference or render backend is unreachable or
	// timed out. Surfaced distinguishably so callers may retry.
	KindBackend Kind = "backend"
	// KindConversion: a format-specific rendering failure; converters
	// degrade gracefully instead of failing the document.
	KindConversion Kind = "conversion"
	// KindConfig: missing or invalid client configuration.
	KindConfig Kind = "config"
	// KindIO: filesystem or encoding failures in the ambient layer.
	KindIO Kind = "io"
)

// Error is the pipeline error type. Page is 1-based when the error is
// attributable to a specific page, zero otherwise.
type Error struct {
	Kind    Kind
	Message string
	Page    int
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Page > 0 && e.Err != nil:
		return fmt.Sprintf("%s error on page %d: %s: %v", e.Kind, e.Page, e.Message, e.Err)
	case e.Page > 0:
		return fmt.Sprintf("%s error on page %d: %s", e.Kind, e.Page, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// InputError builds a fatal input-validation error.
func InputError(msg string, err error) *Error {
	return &Error{Kind: KindInput, Message: msg, Err: err}
}

// PageError builds a page-scoped error; page is 1-based.
func PageError(page int, msg string, err error) *Error {
	return &Error{Kind: KindPage, Message: msg, Page: page, Err: err}
}

// BackendError builds an inference/render backend error.
func BackendError(msg string, err error) *Error {
	return &Error{Kind: KindBackend, Message: msg, Err: err}
}

// ConversionError builds a format-rendering error.
func ConversionError(msg string, err error) *Error {
	return &Error{Kind: KindConversion, Message: msg, Err: err}
}

// ConfigError builds a configuration error.
func ConfigError(msg string, err error) *Error {
	return &Error{Kind: KindConfig, Message: msg, Err: err}
}

// IOError builds a filesystem/encoding error.
func IOError(msg string, err error) *Error {
	return &Error{Kind: KindIO, Message: msg, Err: err}
}

// KindOf extracts the pipeline kind from an error chain; empty when
// the error did not originate here.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// PageOf returns the 1-based page an error is attributed to, or zero.
func PageOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Page
	}
	return 0
}

// IsInput reports whether the chain contains an input error.
func IsInput(err error) bool { return KindOf(err) == KindInput }

// IsBackend reports whether the chain contains a backend error.
func IsBackend(err error) bool {
	var e *Error
	for errors.As(err, &e) {
		if e.Kind == KindBackend {
			return true
		}
		err = e.Err
		if err == nil {
			break
		}
	}
	return false
}

// IsConversion reports whether the chain contains a conversion error.
func IsConversion(err error) bool { return KindOf(err) == KindConversion }
