package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/stco/stationrecon/internal/classify"
	"github.com/stco/stationrecon/internal/domain/model"
	"github.com/stco/stationrecon/internal/support/logger"
)

// SnapshotStore persists the joined cells of each run and serves prior-run
// confidence values for the setup comparison.
type SnapshotStore struct {
	db *gorm.DB
}

func NewSnapshotStore(db *gorm.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// SaveRun writes all cells of a run in one transaction.
func (s *SnapshotStore) SaveRun(ctx context.Context, runID string, cells []model.JoinedCell) error {
	if len(cells) == 0 {
		return nil
	}
	rows := make([]CellSnapshot, 0, len(cells))
	for i := range cells {
		rows = append(rows, newCellSnapshot(runID, &cells[i]))
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, 500).Error
	})
	if err != nil {
		return fmt.Errorf("save run %s: %w", runID, err)
	}
	logger.Infof("persisted %d cells for run %s", len(rows), runID)
	return nil
}

// LatestRunID returns the most recently persisted run, or "" when the store
// is empty.
func (s *SnapshotStore) LatestRunID(ctx context.Context) (string, error) {
	var runID string
	err := s.db.WithContext(ctx).
		Model(&CellSnapshot{}).
		Select("run_id").
		Order("created_at DESC").
		Limit(1).
		Scan(&runID).Error
	if err != nil {
		return "", fmt.Errorf("latest run: %w", err)
	}
	return runID, nil
}

// SetupConfidence loads a prior run's confidence values keyed by grid key,
// the input of the classifier's setup comparison.
func (s *SnapshotStore) SetupConfidence(ctx context.Context, runID string) (classify.SetupSnapshot, error) {
	if runID == "" {
		return nil, nil
	}
	var rows []CellSnapshot
	err := s.db.WithContext(ctx).
		Select("grid_key", "confidence").
		Where("run_id = ?", runID).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("setup confidence for run %s: %w", runID, err)
	}
	snapshot := make(classify.SetupSnapshot, len(rows))
	for _, r := range rows {
		snapshot[r.GridKey] = r.Confidence
	}
	return snapshot, nil
}

// DeleteRun removes a persisted run.
func (s *SnapshotStore) DeleteRun(ctx context.Context, runID string) error {
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).Delete(&CellSnapshot{}).Error
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	return nil
}
