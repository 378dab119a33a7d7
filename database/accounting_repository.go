package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// AccountingRepository persists emitted accounting records alongside the
// flat accounting log, spec.md section 6 "Accounting file format".
type AccountingRepository struct {
	db *gorm.DB
}

// NewAccountingRepository creates a new accounting repository.
func NewAccountingRepository(conn Connection) *AccountingRepository {
	return &AccountingRepository{db: conn.GetGormDB()}
}

// Record inserts one accounting row. Unlike the other repositories this
// is append-only: accounting rows are never updated once written.
func (r *AccountingRepository) Record(row *AccountingRow) error {
	if r.db == nil {
		return fmt.Errorf("database not available")
	}
	if err := r.db.Create(row).Error; err != nil {
		return fmt.Errorf("failed to record accounting entry for job %s: %w", row.JobID, err)
	}
	return nil
}

// ListForJob retrieves every accounting row for one job, ordered by
// timestamp.
func (r *AccountingRepository) ListForJob(jobID string) ([]AccountingRow, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database not available")
	}
	var rows []AccountingRow
	if err := r.db.Where("job_id = ?", jobID).Order("ts ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounting records for job %s: %w", jobID, err)
	}
	return rows, nil
}

// ListSince retrieves accounting rows emitted at or after since, used by
// a nightly rollup or an external reporting job.
func (r *AccountingRepository) ListSince(since time.Time) ([]AccountingRow, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database not available")
	}
	var rows []AccountingRow
	if err := r.db.Where("ts >= ?", since).Order("ts ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounting records since %s: %w", since, err)
	}
	return rows, nil
}
