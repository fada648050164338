// Package scanner periodically pulls overhead snapshots and feeds them to the
// orchestrator.
package scanner

import (
	"context"
	"log"
	"sync"
	"time"

	"parkvision-backend/config"
	"parkvision-backend/internal/parking"
)

// Fetcher downloads a camera snapshot.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// LotScanner processes one overhead frame of a lot.
type LotScanner interface {
	ScanLot(ctx context.Context, lotID string, image []byte) (*parking.ScanResult, error)
}

// Service runs one scan loop per lot that has a snapshot URL.
type Service struct {
	lots    []config.LotConfig
	fetcher Fetcher
	scanner LotScanner
}

// NewService creates a scanner for lots that have a camera URL.
func NewService(lots []config.LotConfig, fetcher Fetcher, scanner LotScanner) *Service {
	return &Service{lots: lots, fetcher: fetcher, scanner: scanner}
}

// Run blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, lot := range s.lots {
		if lot.SnapshotURL == "" {
			log.Printf("Lot %s has no snapshot_url. Periodic scanning disabled for it.", lot.ID)
			continue
		}
		wg.Add(1)
		go func(lot config.LotConfig) {
			defer wg.Done()
			s.runLot(ctx, lot)
		}(lot)
	}
	wg.Wait()
}

func (s *Service) runLot(ctx context.Context, lot config.LotConfig) {
	log.Printf("Starting scanner for lot %s every %s...", lot.ID, lot.ScanInterval)

	s.ScanOnce(ctx, lot)

	timer := time.NewTimer(lot.ScanInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Scanner for lot %s shutting down.", lot.ID)
			return
		case <-timer.C:
			s.ScanOnce(ctx, lot)
			timer.Reset(lot.ScanInterval)
		}
	}
}

// ScanOnce fetches one snapshot of lot and scans it. Failures are logged and
// leave the previous snapshot in place.
func (s *Service) ScanOnce(ctx context.Context, lot config.LotConfig) {
	image, err := s.fetcher.Fetch(ctx, lot.SnapshotURL)
	if err != nil {
		log.Printf("Error fetching snapshot for lot %s: %v", lot.ID, err)
		return
	}

	res, err := s.scanner.ScanLot(ctx, lot.ID, image)
	if err != nil {
		log.Printf("Error scanning lot %s: %v", lot.ID, err)
		return
	}
	log.Printf("Lot %s scanned: %d/%d free, decision %s", lot.ID, len(res.Free), res.Total, res.Assignment.Decision)
}
