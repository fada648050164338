package parking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"parkvision-backend/internal/cluster"
	"parkvision-backend/internal/db"
	"parkvision-backend/internal/model"
	"parkvision-backend/internal/store"
)

var (
	errCameraDown = errors.New("camera down")
	errStoreDown  = errors.New("store down")
)

// textPlates reads the image bytes as the plate text. An empty image has no
// plate and "boom" fails.
type textPlates struct{}

func (textPlates) Recognize(_ context.Context, image []byte) ([]PlateCandidate, error) {
	switch string(image) {
	case "":
		return nil, nil
	case "boom":
		return nil, errCameraDown
	}
	return []PlateCandidate{{Text: string(image), Confidence: 0.9}}, nil
}

// frameSpots serves boxes for frames registered with frame.
type frameSpots struct {
	mu     sync.Mutex
	frames map[string][]cluster.Box
}

func newFrameSpots() *frameSpots {
	return &frameSpots{frames: make(map[string][]cluster.Box)}
}

// frame registers a single-row lot of total spots where the listed spot
// numbers are free, and returns the image that yields it.
func (f *frameSpots) frame(total int, free ...int) []byte {
	isFree := make(map[int]bool, len(free))
	for _, n := range free {
		isFree[n] = true
	}
	boxes := make([]cluster.Box, 0, total)
	for n := total; n >= 1; n-- {
		class := cluster.Occupied
		if isFree[n] {
			class = cluster.Free
		}
		x := float64(n-1) * 100
		boxes = append(boxes, cluster.Box{X1: x, Y1: 10, X2: x + 80, Y2: 50, Class: class, Confidence: 0.8})
	}

	key := fmt.Sprintf("lot:%d:%v", total, free)
	f.mu.Lock()
	f.frames[key] = boxes
	f.mu.Unlock()
	return []byte(key)
}

func (f *frameSpots) Detect(_ context.Context, image []byte) ([]cluster.Box, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	boxes, ok := f.frames[string(image)]
	if !ok {
		return nil, errCameraDown
	}
	return boxes, nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gormDB, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gormDB))
	return store.NewGormStore(gormDB)
}

type harness struct {
	store  store.Store
	gate   *Gate
	spots  *frameSpots
	events *recorder
	orch   *Orchestrator
}

func newHarness(t *testing.T, gateEnabled bool) *harness {
	t.Helper()
	st := newTestStore(t)
	h := &harness{
		store:  st,
		gate:   NewGate(st, gateEnabled),
		spots:  newFrameSpots(),
		events: &recorder{},
	}
	h.orch = NewOrchestrator(st, h.gate, textPlates{}, h.spots, h.events)
	return h
}

// failingStore fails SessionsAwaitingSpot while fail is set.
type failingStore struct {
	store.Store
	fail atomic.Bool
}

func (f *failingStore) SessionsAwaitingSpot(ctx context.Context, lotID string) ([]model.Session, error) {
	if f.fail.Load() {
		return nil, errStoreDown
	}
	return f.Store.SessionsAwaitingSpot(ctx, lotID)
}
