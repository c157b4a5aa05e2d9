package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing repository node or rendition.
	ErrNotFound = errors.New("not found")
	// ErrRenditionTimeout signals that a rendition never became available.
	ErrRenditionTimeout = errors.New("rendition not available")
	// ErrMalformedResponse signals an AI service response missing required fields.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrUnsupportedAction signals an unknown action kind.
	ErrUnsupportedAction = errors.New("unsupported action")
	// ErrIterationLimit signals that a poll run hit its iteration cap.
	ErrIterationLimit = errors.New("iteration limit reached")
	// ErrUnexpectedStatus signals a non-success HTTP status from a gateway.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrInvalidEvent signals a repository event that cannot be decoded.
	ErrInvalidEvent = errors.New("invalid event")
)

// RenditionTimeoutError wraps ErrRenditionTimeout with the number of polls made.
type RenditionTimeoutError struct {
	DocumentID string
	Attempts   int
}

func (e *RenditionTimeoutError) Error() string {
	return fmt.Sprintf("failed to get rendition content for %s after %d retries", e.DocumentID, e.Attempts)
}

func (e *RenditionTimeoutError) Unwrap() error { return ErrRenditionTimeout }

// StatusError wraps ErrUnexpectedStatus with the HTTP status and response body.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s %d: %s", e.Op, ErrUnexpectedStatus.Error(), e.Status, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }
