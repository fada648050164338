// Package parking correlates gate plate reads with overhead occupancy scans
// into per-vehicle sessions.
package parking

import (
	"context"
	"time"

	"parkvision-backend/internal/cluster"
	"parkvision-backend/internal/model"
)

// PlateCandidate is one text reading of a plate with its confidence in [0,1].
type PlateCandidate struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// PlateRecognizer reads plate candidates from a gate camera image.
// An image without a readable plate yields no candidates and no error.
type PlateRecognizer interface {
	Recognize(ctx context.Context, image []byte) ([]PlateCandidate, error)
}

// SpotDetector returns one box per parking spot visible in an overhead image.
type SpotDetector interface {
	Detect(ctx context.Context, image []byte) ([]cluster.Box, error)
}

// Outcome is the result kind of an entry or exit.
type Outcome string

const (
	OutcomeAdmitted       Outcome = "admitted"
	OutcomeAccessDenied   Outcome = "access_denied"
	OutcomeDuplicateEntry Outcome = "duplicate_entry"
	OutcomeExited         Outcome = "exited"
	OutcomeUnknownVehicle Outcome = "unknown_vehicle"
)

// EntryResult describes what happened at the entry gate. Session is the new
// session when admitted and the existing one on a duplicate entry.
type EntryResult struct {
	Outcome Outcome        `json:"outcome"`
	Plate   string         `json:"plate"`
	LotID   string         `json:"lot_id"`
	Session *model.Session `json:"session"`
}

// ExitResult describes what happened at the exit gate.
type ExitResult struct {
	Outcome Outcome        `json:"outcome"`
	Plate   string         `json:"plate"`
	Session *model.Session `json:"session"`
}

// Decision is what the assigner did with one scan.
type Decision string

const (
	DecisionNone        Decision = "none"
	DecisionAssigned    Decision = "assigned"
	DecisionAmbiguous   Decision = "ambiguous"
	DecisionNoCandidate Decision = "no_candidate"
	DecisionBaseline    Decision = "baseline"
)

// Assignment reports the spot diff of a scan and any session it parked.
type Assignment struct {
	Decision Decision       `json:"decision"`
	Taken    []int          `json:"taken"`
	Session  *model.Session `json:"session,omitempty"`
}

// Snapshot is the retained occupancy of a lot after its latest scan.
type Snapshot struct {
	LotID     string    `json:"lot_id"`
	Total     int       `json:"total"`
	Occupied  []int     `json:"occupied"`
	Free      []int     `json:"free"`
	ScannedAt time.Time `json:"scanned_at"`
}

func (s Snapshot) clone() Snapshot {
	s.Occupied = append([]int{}, s.Occupied...)
	s.Free = append([]int{}, s.Free...)
	return s
}

// ScanResult is the outcome of one lot scan.
type ScanResult struct {
	Snapshot
	Spots      []cluster.Spot `json:"spots"`
	Assignment Assignment     `json:"assignment"`
	// PreviousFreeCount is -1 on the first scan of a lot.
	PreviousFreeCount int `json:"previous_free_count"`
}

// EventType names what an Event reports.
type EventType string

const (
	EventEntry EventType = "entry"
	EventExit  EventType = "exit"
	EventScan  EventType = "scan"
)

// Event is published to notifiers after every completed operation.
type Event struct {
	ID      string         `json:"id"`
	Type    EventType      `json:"type"`
	LotID   string         `json:"lot_id,omitempty"`
	Outcome Outcome        `json:"outcome,omitempty"`
	Plate   string         `json:"plate,omitempty"`
	Session *model.Session `json:"session,omitempty"`
	Scan    *ScanResult    `json:"scan,omitempty"`
	At      time.Time      `json:"at"`
}

// Notifier receives orchestrator events. Notify must not block.
type Notifier interface {
	Notify(ev Event)
}
