package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"parkvision-backend/config"
	"parkvision-backend/internal/parking"
)

type mockFetcher struct {
	FetchFunc func(ctx context.Context, url string) ([]byte, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return m.FetchFunc(ctx, url)
}

type mockScanner struct {
	mu    sync.Mutex
	calls map[string]int
	wg    *sync.WaitGroup
}

func (m *mockScanner) ScanLot(_ context.Context, lotID string, image []byte) (*parking.ScanResult, error) {
	m.mu.Lock()
	m.calls[lotID]++
	n := m.calls[lotID]
	m.mu.Unlock()
	if n == 2 {
		m.wg.Done()
	}
	return &parking.ScanResult{Snapshot: parking.Snapshot{LotID: lotID}}, nil
}

func TestService_Run(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(2) // two lots with cameras, each scanned twice

	fetcher := &mockFetcher{FetchFunc: func(ctx context.Context, url string) ([]byte, error) {
		return []byte(url), nil
	}}
	scanner := &mockScanner{calls: map[string]int{}, wg: &wg}

	lots := []config.LotConfig{
		{ID: "main", SnapshotURL: "http://cam/main.jpg", ScanInterval: 10 * time.Millisecond},
		{ID: "north", SnapshotURL: "http://cam/north.jpg", ScanInterval: 10 * time.Millisecond},
		{ID: "dark", ScanInterval: 10 * time.Millisecond},
	}
	svc := NewService(lots, fetcher, scanner)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	waitTimeout := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitTimeout)
	}()

	select {
	case <-waitTimeout:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for periodic scans")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scanner did not stop after cancel")
	}

	scanner.mu.Lock()
	defer scanner.mu.Unlock()
	assert.Zero(t, scanner.calls["dark"], "lot without a camera is never scanned")
}

func TestService_ScanOnceFetchError(t *testing.T) {
	fetcher := &mockFetcher{FetchFunc: func(ctx context.Context, url string) ([]byte, error) {
		return nil, errors.New("camera offline")
	}}
	scanner := &mockScanner{calls: map[string]int{}, wg: &sync.WaitGroup{}}

	NewService(nil, fetcher, scanner).ScanOnce(context.Background(), config.LotConfig{ID: "main", SnapshotURL: "http://cam"})
	assert.Zero(t, scanner.calls["main"], "nothing is scanned without a frame")
}
