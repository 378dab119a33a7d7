package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// SchedulerRepository persists the durable half of a partition's
// Scheduler record (cycle state itself lives only in sched.Scheduler).
type SchedulerRepository struct {
	db *gorm.DB
}

// NewSchedulerRepository creates a new scheduler repository.
func NewSchedulerRepository(conn Connection) *SchedulerRepository {
	return &SchedulerRepository{db: conn.GetGormDB()}
}

// EnsurePartition upserts a SchedulerRow for partition, creating it on
// first sight.
func (r *SchedulerRepository) EnsurePartition(partition string) (*SchedulerRow, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database not available")
	}

	var row SchedulerRow
	err := r.db.Where("partition = ?", partition).First(&row).Error
	if err == nil {
		return &row, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to look up scheduler partition %s: %w", partition, err)
	}

	row = SchedulerRow{Partition: partition}
	if err := r.db.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to create scheduler partition %s: %w", partition, err)
	}
	return &row, nil
}

// MarkDown records the time a partition's scheduler went SCH_DOWN,
// spec.md section 4.4: "EndCycle with a nonzero exit code moves the
// scheduler to Down."
func (r *SchedulerRepository) MarkDown(partition string, when time.Time) error {
	if r.db == nil {
		return fmt.Errorf("database not available")
	}
	result := r.db.Model(&SchedulerRow{}).Where("partition = ?", partition).Update("last_down", when)
	if result.Error != nil {
		return fmt.Errorf("failed to mark scheduler partition %s down: %w", partition, result.Error)
	}
	return nil
}

// ListPartitions retrieves every known partition row.
func (r *SchedulerRepository) ListPartitions() ([]SchedulerRow, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database not available")
	}
	var rows []SchedulerRow
	if err := r.db.Order("partition ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list scheduler partitions: %w", err)
	}
	return rows, nil
}
