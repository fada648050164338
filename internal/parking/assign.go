package parking

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"parkvision-backend/internal/model"
	"parkvision-backend/internal/store"
)

// Assigner binds a newly taken spot to the vehicle that most recently entered.
type Assigner struct {
	store store.Store
}

// NewAssigner returns an assigner that reads and updates sessions in st.
func NewAssigner(st store.Store) *Assigner {
	return &Assigner{store: st}
}

// Taken returns the spots free in prev but not in curr, ascending.
func Taken(prev, curr []int) []int {
	stillFree := make(map[int]struct{}, len(curr))
	for _, n := range curr {
		stillFree[n] = struct{}{}
	}
	taken := []int{}
	for _, n := range prev {
		if _, ok := stillFree[n]; !ok {
			taken = append(taken, n)
		}
	}
	sort.Ints(taken)
	return taken
}

// Apply diffs two free-spot lists of lotID. When exactly one spot was taken
// it parks the newest entering session of the lot there. Several spots taken
// at once are not attributed to anyone.
func (a *Assigner) Apply(ctx context.Context, lotID string, prev, curr []int, at time.Time) (Assignment, error) {
	taken := Taken(prev, curr)
	result := Assignment{Decision: DecisionNone, Taken: taken}

	switch {
	case len(taken) == 0:
		return result, nil
	case len(taken) > 1:
		log.Printf("Lot %s: %d spots taken at once %v, not assigning", lotID, len(taken), taken)
		result.Decision = DecisionAmbiguous
		return result, nil
	}

	waiting, err := a.store.SessionsAwaitingSpot(ctx, lotID)
	if err != nil {
		return result, err
	}
	if len(waiting) == 0 {
		log.Printf("Lot %s: spot %d taken but no vehicle is entering", lotID, taken[0])
		result.Decision = DecisionNoCandidate
		return result, nil
	}

	candidate := waiting[0]
	session, err := a.store.Transition(ctx, candidate.SessionID, model.StatusParked, model.TransitionFields{
		At:   at,
		Spot: int64(taken[0]),
	})
	if err != nil {
		return result, fmt.Errorf("failed to park session %d at spot %d: %w", candidate.SessionID, taken[0], err)
	}

	log.Printf("Lot %s: session %d (%s) parked at spot %d", lotID, session.SessionID, session.Plate, taken[0])
	result.Decision = DecisionAssigned
	result.Session = session
	return result, nil
}
