package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when an operation is invoked while another is in flight.
	ErrBusy = errors.New("another operation is in progress")
	// ErrNoImage guards actions that need a current image.
	ErrNoImage = errors.New("no image selected")
	// ErrEmptyInstruction guards image edits without an instruction.
	ErrEmptyInstruction = errors.New("edit instruction is empty")
	// ErrSuggestionIndex is returned when applying a suggestion that does not exist.
	ErrSuggestionIndex = errors.New("suggestion index out of range")
	// ErrTemplateNotFound is returned for unknown catalog ids.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrSessionNotFound is returned for unknown or expired sessions.
	ErrSessionNotFound = errors.New("session not found")
)

// GatewayError is a transport or remote-model failure of an AI gateway call.
type GatewayError struct {
	Op    string // suggest_captions, edit_image
	Model string
	Err   error
}

func (e *GatewayError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("gateway %s (%s): %v", e.Op, e.Model, e.Err)
	}
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// CaptureError means the render surface could not be rasterized, usually
// because the image could not be loaded.
type CaptureError struct {
	Err error
}

func (e *CaptureError) Error() string { return "capture failed: " + e.Err.Error() }

func (e *CaptureError) Unwrap() error { return e.Err }
