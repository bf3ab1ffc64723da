// Package runs journals bootstrap runs and their steps.
package runs

import (
	"errors"
	"fmt"
	"time"

	"nixstrap/internal/runs/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DefaultListLimit = 20

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) Start(endpoint string, host string) (*types.Run, error) {
	run := &types.Run{
		ID:        uuid.New().String(),
		Endpoint:  endpoint,
		Host:      host,
		Status:    types.RunStatusRunning,
		StartedAt: time.Now(),
	}

	if err := r.db.Create(run).Error; err != nil {
		return nil, err
	}

	return run, nil
}

func (r *Repository) Get(id string) (*types.Run, error) {
	var run types.Run

	if err := r.db.First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, err
	}

	return &run, nil
}

// SetHost records the host chosen once the configuration tree is known.
func (r *Repository) SetHost(runID string, host string) error {
	return r.db.Model(&types.Run{}).Where("id = ?", runID).Update("host", host).Error
}

func (r *Repository) RecordStep(runID string, name string, status types.StepStatus, detail string) (*types.Step, error) {
	var step *types.Step

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var run types.Run
		if err := tx.First(&run, "id = ?", runID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
			}
			return err
		}

		if run.Status.Finished() {
			return fmt.Errorf("%w: %s is %s", ErrRunFinished, runID, run.Status)
		}

		var count int64
		if err := tx.Model(&types.Step{}).Where("run_id = ?", runID).Count(&count).Error; err != nil {
			return err
		}

		step = &types.Step{
			ID:        uuid.New().String(),
			RunID:     runID,
			Seq:       int(count) + 1,
			Name:      name,
			Status:    status,
			Detail:    detail,
			CreatedAt: time.Now(),
		}

		return tx.Create(step).Error
	})

	if err != nil {
		return nil, err
	}

	return step, nil
}

func (r *Repository) Finish(runID string, status types.RunStatus) error {
	if !status.Finished() {
		return fmt.Errorf("%w: %s", ErrInvalidRunStatus, status)
	}

	now := time.Now()

	result := r.db.Model(&types.Run{}).
		Where("id = ? AND status = ?", runID, types.RunStatusRunning).
		Updates(map[string]interface{}{"status": status, "finished_at": &now})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := r.Get(runID); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrRunFinished, runID)
	}

	return nil
}

// List returns the most recent runs first.
func (r *Repository) List(limit int) ([]types.Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var runs []types.Run

	if err := r.db.Order("started_at desc").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}

	return runs, nil
}

func (r *Repository) Steps(runID string) ([]types.Step, error) {
	var steps []types.Step

	if err := r.db.Where("run_id = ?", runID).Order("seq asc").Find(&steps).Error; err != nil {
		return nil, err
	}

	return steps, nil
}
