package parking

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"parkvision-backend/internal/cluster"
	"parkvision-backend/internal/model"
	"parkvision-backend/internal/parse"
	"parkvision-backend/internal/store"
)

// Orchestrator runs entry, lot scan and exit against the session store.
//
// Recognition happens before any lock is taken. mu serializes every store
// mutation sequence, and each lot has its own lock around its snapshot.
// A scan takes its lot lock before mu.
type Orchestrator struct {
	store    store.Store
	gate     *Gate
	plates   PlateRecognizer
	spots    SpotDetector
	assigner *Assigner

	notifiers []Notifier
	now       func() time.Time

	mu sync.Mutex

	lotsMu sync.Mutex
	lots   map[string]*lotState
}

type lotState struct {
	mu       sync.Mutex
	snapshot *Snapshot
}

// NewOrchestrator wires the orchestrator. Notifiers receive every event.
func NewOrchestrator(st store.Store, gate *Gate, plates PlateRecognizer, spots SpotDetector, notifiers ...Notifier) *Orchestrator {
	return &Orchestrator{
		store:     st,
		gate:      gate,
		plates:    plates,
		spots:     spots,
		assigner:  NewAssigner(st),
		notifiers: notifiers,
		now:       func() time.Time { return time.Now().UTC() },
		lots:      make(map[string]*lotState),
	}
}

// AddNotifier registers n for subsequent events.
func (o *Orchestrator) AddNotifier(n Notifier) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notifiers = append(o.notifiers, n)
}

// Gate returns the access gate used at entry.
func (o *Orchestrator) Gate() *Gate {
	return o.gate
}

// readPlate returns the slug of the most confident candidate, or the
// unreadable sentinel when there is none.
func (o *Orchestrator) readPlate(ctx context.Context, image []byte) (string, error) {
	candidates, err := o.plates.Recognize(ctx, image)
	if err != nil {
		return "", fmt.Errorf("plate recognition failed: %w", err)
	}
	if len(candidates) == 0 {
		return parse.Unreadable, nil
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}
	return parse.Plate(best.Text), nil
}

// HandleEntry processes a frame from the entry gate of lotID.
func (o *Orchestrator) HandleEntry(ctx context.Context, lotID string, image []byte) (*EntryResult, error) {
	plate, err := o.readPlate(ctx, image)
	if err != nil {
		return nil, err
	}
	if parse.IsUnreadable(plate) {
		log.Printf("Entry at lot %s: no readable plate, using %q", lotID, plate)
	}

	result, err := o.enter(ctx, lotID, plate)
	if err != nil {
		return nil, err
	}

	o.publish(Event{Type: EventEntry, LotID: lotID, Outcome: result.Outcome, Plate: plate, Session: result.Session})
	return result, nil
}

func (o *Orchestrator) enter(ctx context.Context, lotID, plate string) (*EntryResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	result := &EntryResult{Plate: plate, LotID: lotID}

	allowed, err := o.gate.Admit(ctx, plate)
	if err != nil {
		return nil, fmt.Errorf("failed to check allow-list for %s: %w", plate, err)
	}
	if !allowed {
		log.Printf("Entry denied for %s at lot %s", plate, lotID)
		result.Outcome = OutcomeAccessDenied
		return result, nil
	}

	active, err := o.store.ActiveSessionFor(ctx, plate)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active session for %s: %w", plate, err)
	}
	if active != nil {
		log.Printf("Duplicate entry for %s, session %d is still %s", plate, active.SessionID, active.Status)
		result.Outcome = OutcomeDuplicateEntry
		result.Session = active
		return result, nil
	}

	session, err := o.store.OpenSession(ctx, plate, lotID, o.now())
	if err != nil {
		return nil, err
	}
	log.Printf("Session %d opened for %s at lot %s", session.SessionID, plate, lotID)
	result.Outcome = OutcomeAdmitted
	result.Session = session
	return result, nil
}

// ScanLot processes an overhead frame of lotID. The first scan of a lot only
// records the baseline.
func (o *Orchestrator) ScanLot(ctx context.Context, lotID string, image []byte) (*ScanResult, error) {
	boxes, err := o.spots.Detect(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("spot detection failed for lot %s: %w", lotID, err)
	}
	spots := cluster.Order(boxes)
	summary := cluster.Summarize(spots)

	lot := o.lot(lotID)
	lot.mu.Lock()

	at := o.now()
	result := &ScanResult{
		Snapshot: Snapshot{
			LotID:     lotID,
			Total:     summary.Total,
			Occupied:  summary.Occupied,
			Free:      summary.Free,
			ScannedAt: at,
		},
		Spots:             spots,
		PreviousFreeCount: -1,
	}

	if lot.snapshot == nil {
		result.Assignment = Assignment{Decision: DecisionBaseline, Taken: []int{}}
	} else {
		result.PreviousFreeCount = len(lot.snapshot.Free)
		o.mu.Lock()
		assignment, err := o.assigner.Apply(ctx, lotID, lot.snapshot.Free, summary.Free, at)
		o.mu.Unlock()
		if err != nil {
			lot.mu.Unlock()
			return nil, err
		}
		result.Assignment = assignment
	}

	snap := result.Snapshot.clone()
	lot.snapshot = &snap
	lot.mu.Unlock()

	ev := Event{Type: EventScan, LotID: lotID, Scan: result}
	if result.Assignment.Session != nil {
		ev.Plate = result.Assignment.Session.Plate
		ev.Session = result.Assignment.Session
	}
	o.publish(ev)
	return result, nil
}

// HandleExit processes a frame from the exit gate.
func (o *Orchestrator) HandleExit(ctx context.Context, image []byte) (*ExitResult, error) {
	plate, err := o.readPlate(ctx, image)
	if err != nil {
		return nil, err
	}

	result, err := o.exit(ctx, plate)
	if err != nil {
		return nil, err
	}

	ev := Event{Type: EventExit, Outcome: result.Outcome, Plate: plate, Session: result.Session}
	if result.Session != nil {
		ev.LotID = result.Session.LotID
	}
	o.publish(ev)
	return result, nil
}

func (o *Orchestrator) exit(ctx context.Context, plate string) (*ExitResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	result := &ExitResult{Plate: plate}

	latest, err := o.store.LatestSessionFor(ctx, plate)
	if err != nil {
		return nil, fmt.Errorf("failed to look up latest session for %s: %w", plate, err)
	}
	if latest == nil || !latest.Active() {
		log.Printf("Exit scan for %s matches no vehicle inside", plate)
		result.Outcome = OutcomeUnknownVehicle
		return result, nil
	}

	session, err := o.store.Transition(ctx, latest.SessionID, model.StatusExited, model.TransitionFields{At: o.now()})
	if err != nil {
		return nil, err
	}
	log.Printf("Session %d closed for %s, previous spot %d", session.SessionID, plate, session.PreviousSpot.ValueOrZero())
	result.Outcome = OutcomeExited
	result.Session = session
	return result, nil
}

// Snapshot returns a copy of the latest occupancy of lotID.
func (o *Orchestrator) Snapshot(lotID string) (Snapshot, bool) {
	o.lotsMu.Lock()
	lot, ok := o.lots[lotID]
	o.lotsMu.Unlock()
	if !ok {
		return Snapshot{}, false
	}

	lot.mu.Lock()
	defer lot.mu.Unlock()
	if lot.snapshot == nil {
		return Snapshot{}, false
	}
	return lot.snapshot.clone(), true
}

func (o *Orchestrator) lot(lotID string) *lotState {
	o.lotsMu.Lock()
	defer o.lotsMu.Unlock()
	lot, ok := o.lots[lotID]
	if !ok {
		lot = &lotState{}
		o.lots[lotID] = lot
	}
	return lot
}

func (o *Orchestrator) publish(ev Event) {
	ev.ID = uuid.NewString()
	if ev.At.IsZero() {
		ev.At = o.now()
	}

	o.mu.Lock()
	notifiers := append([]Notifier(nil), o.notifiers...)
	o.mu.Unlock()

	for _, n := range notifiers {
		n.Notify(ev)
	}
}
