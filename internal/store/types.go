package store

import (
	"errors"
	"time"

	"parkvision-backend/internal/model"
)

// ErrSessionNotFound is returned when a transition targets an unknown session.
var ErrSessionNotFound = errors.New("session not found")

// SessionFilter narrows ListSessions. Zero values match everything.
type SessionFilter struct {
	Status model.SessionStatus
	Plate  string
	LotID  string
	// At keeps only sessions that had entered and not yet exited at that time.
	At     time.Time
	Limit  int
}
