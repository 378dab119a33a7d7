package database

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// JobRepository persists job headers and their attribute arrays.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(conn Connection) *JobRepository {
	return &JobRepository{db: conn.GetGormDB()}
}

// Save upserts a job's header row and replaces its attribute rows inside
// one transaction. Per spec.md section 7 "Internal": an unrecoverable
// inconsistency here (e.g. a committed state that the database rejects)
// is treated as an Internal error by the caller, not retried silently.
func (r *JobRepository) Save(row *JobRow, attrs []AttributeRow) error {
	if r.db == nil {
		return fmt.Errorf("database not available")
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(row).Error; err != nil {
			return fmt.Errorf("failed to save job %s: %w", row.ID, err)
		}
		if err := tx.Where("owner_type = ? AND owner_id = ?", "job", row.ID).Delete(&AttributeRow{}).Error; err != nil {
			return fmt.Errorf("failed to clear job attributes for %s: %w", row.ID, err)
		}
		for i := range attrs {
			attrs[i].OwnerType = "job"
			attrs[i].OwnerID = row.ID
		}
		if len(attrs) > 0 {
			if err := tx.Create(&attrs).Error; err != nil {
				return fmt.Errorf("failed to save job attributes for %s: %w", row.ID, err)
			}
		}
		return nil
	})
}

// GetByID retrieves one job header with its attribute rows.
func (r *JobRepository) GetByID(id string) (*JobRow, []AttributeRow, error) {
	if r.db == nil {
		return nil, nil, fmt.Errorf("database not available")
	}

	var row JobRow
	if err := r.db.Where("id = ?", id).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, fmt.Errorf("job not found: %s", id)
		}
		return nil, nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}

	var attrs []AttributeRow
	if err := r.db.Where("owner_type = ? AND owner_id = ?", "job", id).Find(&attrs).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to get job attributes for %s: %w", id, err)
	}
	return &row, attrs, nil
}

// ListByQueue retrieves every job header in the named queue, whatever its
// state, ordered by qtime.
func (r *JobRepository) ListByQueue(queue string) ([]JobRow, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database not available")
	}
	var rows []JobRow
	if err := r.db.Where("queue = ?", queue).Order("qtime ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list jobs for queue %s: %w", queue, err)
	}
	return rows, nil
}

// ListArraySubjobs retrieves every subjob row for a parent array job.
func (r *JobRepository) ListArraySubjobs(parentID string) ([]JobRow, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database not available")
	}
	var rows []JobRow
	if err := r.db.Where("array_parent_id = ?", parentID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list subjobs for %s: %w", parentID, err)
	}
	return rows, nil
}

// ListAll retrieves every job header, used to rebuild in-memory job state
// on startup (server recovery, spec.md section 6's DecodeRecovery path).
func (r *JobRepository) ListAll() ([]JobRow, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database not available")
	}
	var rows []JobRow
	if err := r.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	log.WithField("count", len(rows)).Debug("Listed jobs from database")
	return rows, nil
}

// Delete removes a job header and its attribute rows; the Delete handler
// calls it when a job is deleted.
func (r *JobRepository) Delete(id string) error {
	if r.db == nil {
		return fmt.Errorf("database not available")
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_type = ? AND owner_id = ?", "job", id).Delete(&AttributeRow{}).Error; err != nil {
			return fmt.Errorf("failed to delete job attributes for %s: %w", id, err)
		}
		result := tx.Delete(&JobRow{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete job %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("job not found: %s", id)
		}
		return nil
	})
}
