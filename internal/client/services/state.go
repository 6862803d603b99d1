package services

import (
	"bytes"
	"encoding/json"
)

// Status is the lifecycle phase of the session state.
type Status int

const (
	// StatusUninitialized: no session check has started yet.
	StatusUninitialized Status = iota
	// StatusChecking: the startup check is in flight.
	StatusChecking
	StatusAuthenticated
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusChecking:
		return "checking"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// State is a snapshot of the shared session state.
//
// Authenticated is true only when User is present. Initialized turns true
// once the first session check has completed and never goes back.
type State struct {
	Status        Status
	User          json.RawMessage
	Authenticated bool
	Initialized   bool
}

func (s State) clone() State {
	if s.User != nil {
		s.User = bytes.Clone(s.User)
	}
	return s
}

func authenticated(prev State, user json.RawMessage) State {
	return State{
		Status:        StatusAuthenticated,
		User:          bytes.Clone(user),
		Authenticated: true,
		Initialized:   prev.Initialized,
	}
}

func anonymous(prev State) State {
	return State{Status: StatusAnonymous, Initialized: prev.Initialized}
}
