package orchestrator

import (
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists jobs in a SQL database through GORM. It satisfies Store
// so the Repository can swap it in for the in-memory map without knowing.
type GormStore struct {
	db  *gorm.DB
	log *slog.Logger
}

// NewGormStore migrates the jobs table and returns a database-backed store.
func NewGormStore(db *gorm.DB, log *slog.Logger) (*GormStore, error) {
	if err := db.AutoMigrate(&Job{}); err != nil {
		return nil, fmt.Errorf("migrating jobs table: %w", err)
	}
	return &GormStore{db: db, log: log}, nil
}

// GetJob implements Store.GetJob. Database errors other than not-found are
// logged and reported as not-found.
func (s *GormStore) GetJob(id JobID) (*Job, bool) {
	var j Job
	if err := s.db.Where("id = ?", id).First(&j).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Error("loading job", slog.String("job_id", string(id)), slog.String("error", err.Error()))
		}
		return nil, false
	}
	return &j, true
}

// SetJob implements Store.SetJob as an upsert keyed on the job ID.
func (s *GormStore) SetJob(j *Job) error {
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(j).Error; err != nil {
		return fmt.Errorf("saving job: %w", err)
	}
	return nil
}

// ListJobIDs implements Store.ListJobIDs.
func (s *GormStore) ListJobIDs() []JobID {
	var ids []JobID
	if err := s.db.Model(&Job{}).Order("created_at ASC").Pluck("id", &ids).Error; err != nil {
		s.log.Error("listing job ids", slog.String("error", err.Error()))
		return nil
	}
	return ids
}
