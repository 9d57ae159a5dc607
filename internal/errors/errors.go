// Package errors provides the error taxonomy shared by the engines and the
// chat coordinator.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	ErrLoadFailed   = errors.New("model load failed")
	ErrStreamFailed = errors.New("generation failed")
	ErrUnloadFailed = errors.New("model unload failed")

	ErrNotLoaded   = errors.New("no model loaded")
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
	ErrClosed      = errors.New("chat session closed")
)

// LoadError represents a failure to load a model
type LoadError struct {
	Path    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Path != "" && msg != "":
		return fmt.Sprintf("failed to load %s: %s", e.Path, msg)
	case e.Path != "":
		return fmt.Sprintf("failed to load %s", e.Path)
	case msg != "":
		return fmt.Sprintf("failed to load model: %s", msg)
	default:
		return ErrLoadFailed.Error()
	}
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is allows comparison with sentinel errors
func (e *LoadError) Is(target error) bool {
	if target == ErrLoadFailed {
		return true
	}
	_, ok := target.(*LoadError)
	return ok
}

// NewLoadError creates a new LoadError
func NewLoadError(path, message string, cause error) *LoadError {
	return &LoadError{Path: path, Message: message, Err: cause}
}

// StreamError represents a failure while generating a reply. It may arrive
// before the first fragment or in the middle of a stream.
type StreamError struct {
	Message string
	Err     error
}

func (e *StreamError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ErrStreamFailed.Error()
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// Is allows comparison with sentinel errors
func (e *StreamError) Is(target error) bool {
	if target == ErrStreamFailed {
		return true
	}
	_, ok := target.(*StreamError)
	return ok
}

// NewStreamError creates a new StreamError
func NewStreamError(message string, cause error) *StreamError {
	return &StreamError{Message: message, Err: cause}
}

// UnloadError represents a failure to release a model
type UnloadError struct {
	Message string
	Err     error
}

func (e *UnloadError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("failed to unload model: %s", e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("failed to unload model: %v", e.Err)
	}
	return ErrUnloadFailed.Error()
}

func (e *UnloadError) Unwrap() error {
	return e.Err
}

// Is allows comparison with sentinel errors
func (e *UnloadError) Is(target error) bool {
	if target == ErrUnloadFailed {
		return true
	}
	_, ok := target.(*UnloadError)
	return ok
}

// NewUnloadError creates a new UnloadError
func NewUnloadError(message string, cause error) *UnloadError {
	return &UnloadError{Message: message, Err: cause}
}

// IsLoadError reports whether err is or wraps a LoadError
func IsLoadError(err error) bool {
	var e *LoadError
	return errors.As(err, &e)
}

// IsStreamError reports whether err is or wraps a StreamError
func IsStreamError(err error) bool {
	var e *StreamError
	return errors.As(err, &e)
}

// IsUnloadError reports whether err is or wraps an UnloadError
func IsUnloadError(err error) bool {
	var e *UnloadError
	return errors.As(err, &e)
}

// Describe returns the human-readable text shown in the transcript for err.
// Stream errors contribute only their message so a reply body ends with
// exactly what the engine reported.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var se *StreamError
	if errors.As(err, &se) {
		return se.Error()
	}
	return err.Error()
}
