package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/driveline/jobfeed/internal/interfaces"
	"github.com/driveline/jobfeed/internal/models"
)

// JobStorage implements the JobStorage interface for Badger
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

// GetByIDs returns stored rows for the given job ids updated within the window.
func (s *JobStorage) GetByIDs(ctx context.Context, ids []string, window time.Duration) ([]models.StoreJob, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]interface{}, len(ids))
	for i, id := range ids {
		keys[i] = id
	}

	query := badgerhold.Where("JobID").In(keys...)
	if window > 0 {
		since := time.Now().Add(-window)
		query = query.And("UpdatedAt").Ge(since)
	}

	var rows []models.StoreJob
	if err := s.db.Store().Find(&rows, query); err != nil {
		return nil, fmt.Errorf("failed to get jobs by ids: %w", err)
	}
	return rows, nil
}

// Search returns rows matching the query, most recently updated first.
func (s *JobStorage) Search(ctx context.Context, q models.StoreQuery) ([]models.StoreJob, error) {
	query := badgerhold.Where("JobID").Ne("")

	if q.Market != "" {
		query = badgerhold.Where("Market").Eq(q.Market).Index("Market")
	}
	if len(q.MatchLevels) > 0 {
		levels := make([]interface{}, len(q.MatchLevels))
		for i, level := range q.MatchLevels {
			levels[i] = level
		}
		query = query.And("MatchLevel").In(levels...)
	}
	if !q.Since.IsZero() {
		query = query.And("UpdatedAt").Ge(q.Since)
	}
	switch q.RouteFilter {
	case "local":
		query = query.And("RouteType").Eq(string(models.RouteLocal))
	case "otr":
		query = query.And("RouteType").Eq(string(models.RouteOTR))
	}
	if q.FairChanceOnly {
		query = query.And("FairChance").Ne("")
	}

	query = query.SortBy("UpdatedAt").Reverse()
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var rows []models.StoreJob
	if err := s.db.Store().Find(&rows, query); err != nil {
		return nil, fmt.Errorf("failed to search jobs: %w", err)
	}
	return rows, nil
}

// Upsert writes rows keyed on JobID, preserving CreatedAt on updates.
func (s *JobStorage) Upsert(ctx context.Context, rows []models.StoreJob) error {
	now := time.Now()
	for i := range rows {
		row := rows[i]
		if row.JobID == "" {
			return fmt.Errorf("job id is required for upsert")
		}

		var existing models.StoreJob
		err := s.db.Store().Get(row.JobID, &existing)
		if err == nil {
			row.CreatedAt = existing.CreatedAt
		} else if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		row.UpdatedAt = now

		if err := s.db.Store().Upsert(row.JobID, &row); err != nil {
			return fmt.Errorf("failed to upsert job %s: %w", row.JobID, err)
		}
	}
	return nil
}

// RefreshTimestamps sets UpdatedAt to now for the given job ids.
// Missing ids are skipped with a warning; reuse must tolerate rows evicted
// between lookup and refresh.
func (s *JobStorage) RefreshTimestamps(ctx context.Context, ids []string) error {
	now := time.Now()
	for _, id := range ids {
		var row models.StoreJob
		if err := s.db.Store().Get(id, &row); err != nil {
			if err == badgerhold.ErrNotFound {
				s.logger.Warn().Str("job_id", id).Msg("Cannot refresh timestamp for missing job")
				continue
			}
			return fmt.Errorf("failed to load job %s for refresh: %w", id, err)
		}
		row.UpdatedAt = now
		if err := s.db.Store().Upsert(id, &row); err != nil {
			return fmt.Errorf("failed to refresh job %s: %w", id, err)
		}
	}
	return nil
}

// Count returns the total number of stored jobs.
func (s *JobStorage) Count(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.StoreJob{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return int(count), nil
}
