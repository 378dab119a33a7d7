package database

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// NodeRepository persists vnode headers and their attribute arrays.
type NodeRepository struct {
	db *gorm.DB
}

// NewNodeRepository creates a new node repository.
func NewNodeRepository(conn Connection) *NodeRepository {
	return &NodeRepository{db: conn.GetGormDB()}
}

// Save upserts a node's header row and replaces its attribute rows inside
// a single transaction, matching spec.md section 5 "Transactions": "A
// multi-table update ... is wrapped in a single database transaction; on
// any failure the whole update rolls back and the in-memory state is
// considered authoritative until the next successful save."
func (r *NodeRepository) Save(row *NodeRow, attrs []AttributeRow) error {
	if r.db == nil {
		return fmt.Errorf("database not available")
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(row).Error; err != nil {
			return fmt.Errorf("failed to save node %s: %w", row.Name, err)
		}
		if err := tx.Where("owner_type = ? AND owner_id = ?", "node", row.Name).Delete(&AttributeRow{}).Error; err != nil {
			return fmt.Errorf("failed to clear node attributes for %s: %w", row.Name, err)
		}
		for i := range attrs {
			attrs[i].OwnerType = "node"
			attrs[i].OwnerID = row.Name
		}
		if len(attrs) > 0 {
			if err := tx.Create(&attrs).Error; err != nil {
				return fmt.Errorf("failed to save node attributes for %s: %w", row.Name, err)
			}
		}
		return nil
	})
}

// GetByName retrieves a node's header and attribute rows.
func (r *NodeRepository) GetByName(name string) (*NodeRow, []AttributeRow, error) {
	if r.db == nil {
		return nil, nil, fmt.Errorf("database not available")
	}

	var row NodeRow
	if err := r.db.Where("name = ?", name).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, fmt.Errorf("node not found: %s", name)
		}
		return nil, nil, fmt.Errorf("failed to get node %s: %w", name, err)
	}

	var attrs []AttributeRow
	if err := r.db.Where("owner_type = ? AND owner_id = ?", "node", name).Find(&attrs).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to get node attributes for %s: %w", name, err)
	}
	return &row, attrs, nil
}

// ListAll retrieves every node header, used to rebuild the in-memory
// node.Index on startup.
func (r *NodeRepository) ListAll() ([]NodeRow, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database not available")
	}
	var rows []NodeRow
	if err := r.db.Order("name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	log.WithField("count", len(rows)).Debug("Listed nodes from database")
	return rows, nil
}

// Delete removes a node header and its attribute rows.
func (r *NodeRepository) Delete(name string) error {
	if r.db == nil {
		return fmt.Errorf("database not available")
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_type = ? AND owner_id = ?", "node", name).Delete(&AttributeRow{}).Error; err != nil {
			return fmt.Errorf("failed to delete node attributes for %s: %w", name, err)
		}
		result := tx.Delete(&NodeRow{}, "name = ?", name)
		if result.Error != nil {
			return fmt.Errorf("failed to delete node %s: %w", name, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("node not found: %s", name)
		}
		return nil
	})
}
