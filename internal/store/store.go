package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gopkg.in/guregu/null.v4"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parkvision-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	NextSessionID(ctx context.Context) (int64, error)
	ActiveSessionFor(ctx context.Context, plate string) (*model.Session, error)
	LatestSessionFor(ctx context.Context, plate string) (*model.Session, error)
	OpenSession(ctx context.Context, plate, lotID string, at time.Time) (*model.Session, error)
	Transition(ctx context.Context, sessionID int64, to model.SessionStatus, f model.TransitionFields) (*model.Session, error)
	SessionsAwaitingSpot(ctx context.Context, lotID string) ([]model.Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]model.Session, error)

	IsAllowed(ctx context.Context, plate string) (bool, error)
	AddAllowed(ctx context.Context, plate string) (bool, error)
	RemoveAllowed(ctx context.Context, plate string) (bool, error)
	ListAllowed(ctx context.Context) ([]model.AllowedPlate, error)

	UpsertLots(ctx context.Context, lots []model.Lot) error
	ListLots(ctx context.Context) ([]model.Lot, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// NextSessionID returns the current maximum session id plus one, or 1 for an empty table.
func (s *gormStore) NextSessionID(ctx context.Context) (int64, error) {
	return nextSessionID(s.db.WithContext(ctx))
}

func nextSessionID(tx *gorm.DB) (int64, error) {
	var maxID int64
	if err := tx.Model(&model.Session{}).Select("COALESCE(MAX(session_id), 0)").Scan(&maxID).Error; err != nil {
		return 0, fmt.Errorf("failed to read max session id: %w", err)
	}
	return maxID + 1, nil
}

// ActiveSessionFor returns the session for plate that has not exited, or nil.
func (s *gormStore) ActiveSessionFor(ctx context.Context, plate string) (*model.Session, error) {
	return firstOrNil(s.db.WithContext(ctx).
		Where("plate = ? AND status <> ?", plate, model.StatusExited).
		Order("session_id DESC"))
}

// LatestSessionFor returns the session with the highest id for plate, in any status, or nil.
func (s *gormStore) LatestSessionFor(ctx context.Context, plate string) (*model.Session, error) {
	return firstOrNil(s.db.WithContext(ctx).
		Where("plate = ?", plate).
		Order("session_id DESC"))
}

func firstOrNil(q *gorm.DB) (*model.Session, error) {
	var session model.Session
	err := q.Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// OpenSession allocates the next session id and inserts an entering session in one transaction.
func (s *gormStore) OpenSession(ctx context.Context, plate, lotID string, at time.Time) (*model.Session, error) {
	var session model.Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := nextSessionID(tx)
		if err != nil {
			return err
		}
		session = model.Session{
			SessionID: id,
			Plate:     plate,
			LotID:     lotID,
			Status:    model.StatusEntering,
			EntryTime: null.TimeFrom(at.UTC()),
		}
		if err := tx.Create(&session).Error; err != nil {
			return fmt.Errorf("failed to insert session %d for plate %s: %w", id, plate, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Transition loads the session, validates the move and persists it atomically.
func (s *gormStore) Transition(ctx context.Context, sessionID int64, to model.SessionStatus, f model.TransitionFields) (*model.Session, error) {
	var session model.Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Take(&session, "session_id = ?", sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %d", ErrSessionNotFound, sessionID)
			}
			return fmt.Errorf("failed to load session %d: %w", sessionID, err)
		}
		f.At = f.At.UTC()
		if err := session.Apply(to, f); err != nil {
			return err
		}
		if err := tx.Save(&session).Error; err != nil {
			return fmt.Errorf("failed to save session %d: %w", sessionID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// SessionsAwaitingSpot returns the entering sessions of a lot, newest first.
func (s *gormStore) SessionsAwaitingSpot(ctx context.Context, lotID string) ([]model.Session, error) {
	var sessions []model.Session
	err := s.db.WithContext(ctx).
		Where("lot_id = ? AND status = ?", lotID, model.StatusEntering).
		Order("session_id DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions awaiting a spot: %w", err)
	}
	return sessions, nil
}

// ListSessions returns sessions matching filter ordered by id.
func (s *gormStore) ListSessions(ctx context.Context, filter SessionFilter) ([]model.Session, error) {
	q := s.db.WithContext(ctx).Model(&model.Session{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Plate != "" {
		q = q.Where("plate = ?", filter.Plate)
	}
	if filter.LotID != "" {
		q = q.Where("lot_id = ?", filter.LotID)
	}
	if !filter.At.IsZero() {
		// sqlite compares timestamps as text, so every bound time is UTC
		at := filter.At.UTC()
		q = q.Where("entry_time <= ? AND (exit_time IS NULL OR exit_time > ?)", at, at)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var sessions []model.Session
	if err := q.Order("session_id").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *gormStore) IsAllowed(ctx context.Context, plate string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.AllowedPlate{}).Where("plate = ?", plate).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddAllowed inserts plate and reports whether it was not already present.
func (s *gormStore) AddAllowed(ctx context.Context, plate string) (bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.AllowedPlate{Plate: plate})
	if result.Error != nil {
		return false, fmt.Errorf("failed to add allowed plate %s: %w", plate, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// RemoveAllowed deletes plate and reports whether it was present.
func (s *gormStore) RemoveAllowed(ctx context.Context, plate string) (bool, error) {
	result := s.db.WithContext(ctx).Delete(&model.AllowedPlate{}, "plate = ?", plate)
	if result.Error != nil {
		return false, fmt.Errorf("failed to remove allowed plate %s: %w", plate, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *gormStore) ListAllowed(ctx context.Context) ([]model.AllowedPlate, error) {
	var plates []model.AllowedPlate
	if err := s.db.WithContext(ctx).Order("plate").Find(&plates).Error; err != nil {
		return nil, err
	}
	return plates, nil
}

// UpsertLots writes the configured lots, updating names and capacities.
func (s *gormStore) UpsertLots(ctx context.Context, lots []model.Lot) error {
	if len(lots) == 0 {
		return nil
	}
	log.Printf("Batch upserting %d lots...", len(lots))
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "total_spots", "updated_at"}),
	}).Create(&lots).Error
}

func (s *gormStore) ListLots(ctx context.Context) ([]model.Lot, error) {
	var lots []model.Lot
	if err := s.db.WithContext(ctx).Order("id").Find(&lots).Error; err != nil {
		return nil, err
	}
	return lots, nil
}
