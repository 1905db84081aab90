package library

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lyrix/internal/models"
)

// StateManager keeps the last transport state of every song session, so an operator can see
// where host sync stood when a session went away.
type StateManager struct {
	db *gorm.DB
}

func NewStateManager(db *gorm.DB) *StateManager {
	return &StateManager{db: db}
}

// GetState reads the last snapshot for a song.
func (sm *StateManager) GetState(ctx context.Context, songID uint) (*models.TransportSnapshot, error) {
	var state models.TransportSnapshot
	err := sm.db.WithContext(ctx).First(&state, "song_id = ?", songID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSongNotFound
	}
	return &state, err
}

// UpdateState is called on every transport transition. There is one row per song.
func (sm *StateManager) UpdateState(ctx context.Context, snap models.TransportSnapshot) error {
	snap.UpdatedAt = time.Now()
	return sm.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "song_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "reason", "host_position_ms", "updated_at"}),
	}).Create(&snap).Error
}
