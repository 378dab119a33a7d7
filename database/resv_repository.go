package database

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ReservationRepository persists reservation headers and their attribute
// arrays.
type ReservationRepository struct {
	db *gorm.DB
}

// NewReservationRepository creates a new reservation repository.
func NewReservationRepository(conn Connection) *ReservationRepository {
	return &ReservationRepository{db: conn.GetGormDB()}
}

// Save upserts a reservation header and replaces its attribute rows.
func (r *ReservationRepository) Save(row *ReservationRow, vnodes []string, attrs []AttributeRow) error {
	if r.db == nil {
		return fmt.Errorf("database not available")
	}
	row.Vnodes = strings.Join(vnodes, ",")

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(row).Error; err != nil {
			return fmt.Errorf("failed to save reservation %s: %w", row.ID, err)
		}
		if err := tx.Where("owner_type = ? AND owner_id = ?", "resv", row.ID).Delete(&AttributeRow{}).Error; err != nil {
			return fmt.Errorf("failed to clear reservation attributes for %s: %w", row.ID, err)
		}
		for i := range attrs {
			attrs[i].OwnerType = "resv"
			attrs[i].OwnerID = row.ID
		}
		if len(attrs) > 0 {
			if err := tx.Create(&attrs).Error; err != nil {
				return fmt.Errorf("failed to save reservation attributes for %s: %w", row.ID, err)
			}
		}
		return nil
	})
}

// GetByID retrieves one reservation with its vnode list and attributes.
func (r *ReservationRepository) GetByID(id string) (*ReservationRow, []string, []AttributeRow, error) {
	if r.db == nil {
		return nil, nil, nil, fmt.Errorf("database not available")
	}

	var row ReservationRow
	if err := r.db.Where("id = ?", id).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, nil, fmt.Errorf("reservation not found: %s", id)
		}
		return nil, nil, nil, fmt.Errorf("failed to get reservation %s: %w", id, err)
	}

	var attrs []AttributeRow
	if err := r.db.Where("owner_type = ? AND owner_id = ?", "resv", id).Find(&attrs).Error; err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get reservation attributes for %s: %w", id, err)
	}

	var vnodes []string
	if row.Vnodes != "" {
		vnodes = strings.Split(row.Vnodes, ",")
	}
	return &row, vnodes, attrs, nil
}

// ListAll retrieves every reservation header, used to rebuild in-memory
// reservation state on startup.
func (r *ReservationRepository) ListAll() ([]ReservationRow, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database not available")
	}
	var rows []ReservationRow
	if err := r.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return rows, nil
}

// Delete removes a reservation and its attribute rows.
func (r *ReservationRepository) Delete(id string) error {
	if r.db == nil {
		return fmt.Errorf("database not available")
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_type = ? AND owner_id = ?", "resv", id).Delete(&AttributeRow{}).Error; err != nil {
			return fmt.Errorf("failed to delete reservation attributes for %s: %w", id, err)
		}
		result := tx.Delete(&ReservationRow{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete reservation %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("reservation not found: %s", id)
		}
		return nil
	})
}
