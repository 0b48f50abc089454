package model

import (
	"fmt"

	"github.com/heart-risk-service/internal/domain"
)

// Status is the readiness of the classifier
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusReady         Status = "ready"
	StatusFailed        Status = "failed"
)

// State is an immutable snapshot of the classifier readiness. It is passed to
// request handling instead of living in a package variable.
type State struct {
	status     Status
	classifier Classifier
	reason     error
}

// Uninitialized returns the state before any load was attempted.
func Uninitialized() State {
	return State{status: StatusUninitialized}
}

// Ready returns a state holding a usable classifier.
func Ready(c Classifier) State {
	if c == nil {
		return Failed(fmt.Errorf("nil classifier: %w", domain.ErrConfiguration))
	}
	return State{status: StatusReady, classifier: c}
}

// Failed returns a state recording why the classifier is unavailable.
func Failed(reason error) State {
	return State{status: StatusFailed, reason: reason}
}

// LoadState loads the artifact at path. A missing or invalid artifact yields
// a Failed state rather than an error so the service can start degraded.
func LoadState(path string) State {
	m, err := LoadFile(path)
	if err != nil {
		return Failed(err)
	}
	return Ready(m)
}

// Status returns the readiness status
func (s State) Status() Status {
	if s.status == "" {
		return StatusUninitialized
	}
	return s.status
}

// IsReady reports whether a classifier is available
func (s State) IsReady() bool {
	return s.status == StatusReady
}

// Classifier returns the loaded classifier, or ErrModelUnavailable.
func (s State) Classifier() (Classifier, error) {
	switch s.Status() {
	case StatusReady:
		return s.classifier, nil
	case StatusFailed:
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, s.reason)
	default:
		return nil, domain.ErrModelUnavailable
	}
}

// Reason returns why loading failed, if it did.
func (s State) Reason() error {
	return s.reason
}
