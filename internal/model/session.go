package model

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/guregu/null.v4"
)

// SessionStatus is the lifecycle state of a vehicle visit.
type SessionStatus string

const (
	StatusEntering SessionStatus = "entering"
	StatusParked   SessionStatus = "parked"
	StatusExited   SessionStatus = "exited"
)

// ErrInvalidTransition is returned when a session cannot move to the requested status.
var ErrInvalidTransition = errors.New("invalid session transition")

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusEntering, StatusParked, StatusExited:
		return true
	}
	return false
}

// Session is one tracked visit of a vehicle, from entry to exit.
// Spot is set only while parked; PreviousSpot keeps it after exit.
type Session struct {
	SessionID    int64         `gorm:"primaryKey;autoIncrement:false" json:"session_id"`
	Plate        string        `gorm:"size:64;not null;index" json:"plate"`
	LotID        string        `gorm:"size:64;not null;index" json:"lot_id"`
	Status       SessionStatus `gorm:"size:16;not null;index" json:"status"`
	Spot         null.Int      `json:"spot"`
	PreviousSpot null.Int      `json:"previous_spot"`
	EntryTime    null.Time     `json:"entry_time"`
	ParkTime     null.Time     `json:"park_time"`
	ExitTime     null.Time     `json:"exit_time"`
	CreatedAt    time.Time     `gorm:"not null" json:"-"`
	UpdatedAt    time.Time     `gorm:"not null" json:"-"`
}

// Active reports whether the visit is still in progress.
func (s *Session) Active() bool {
	return s.Status != StatusExited
}

// TransitionFields carries the values written by a transition.
type TransitionFields struct {
	At   time.Time
	Spot int64 // only used when parking
}

// Apply moves the session to status to, stamping the fields that belong to
// the target state. It is the single place where transitions are validated.
func (s *Session) Apply(to SessionStatus, f TransitionFields) error {
	switch {
	case s.Status == StatusEntering && to == StatusParked:
		if f.Spot <= 0 {
			return fmt.Errorf("%w: spot %d for session %d", ErrInvalidTransition, f.Spot, s.SessionID)
		}
		s.Spot = null.IntFrom(f.Spot)
		s.ParkTime = null.TimeFrom(f.At)
	case s.Active() && to == StatusExited:
		s.PreviousSpot = s.Spot
		s.Spot = null.Int{}
		s.ExitTime = null.TimeFrom(f.At)
	default:
		return fmt.Errorf("%w: %s -> %s for session %d", ErrInvalidTransition, s.Status, to, s.SessionID)
	}
	s.Status = to
	return nil
}
