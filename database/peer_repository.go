package database

import (
	"fmt"

	"gorm.io/gorm"
)

// PeerRepository persists static peer topology and the durable mirror of
// each peer's outstanding-INCR ledger.
type PeerRepository struct {
	db *gorm.DB
}

// NewPeerRepository creates a new peer repository.
func NewPeerRepository(conn Connection) *PeerRepository {
	return &PeerRepository{db: conn.GetGormDB()}
}

// ListPeers retrieves the static peer list, spec.md section 4.5: "A
// Server knows its peers from static configuration."
func (r *PeerRepository) ListPeers() ([]PeerServerRow, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database not available")
	}
	var rows []PeerServerRow
	if err := r.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list peers: %w", err)
	}
	return rows, nil
}

// AddPeer registers a new static peer.
func (r *PeerRepository) AddPeer(host string, port int) error {
	if r.db == nil {
		return fmt.Errorf("database not available")
	}
	row := PeerServerRow{Host: host, Port: port}
	if err := r.db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to add peer %s:%d: %w", host, port, err)
	}
	return nil
}

// SaveLedger replaces the durable ledger mirror for one peer with its
// current outstanding INCRs, inside one transaction.
func (r *PeerRepository) SaveLedger(peerHost string, peerPort int, rows []ResourceUpdateLedgerRow) error {
	if r.db == nil {
		return fmt.Errorf("database not available")
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("peer_host = ? AND peer_port = ?", peerHost, peerPort).
			Delete(&ResourceUpdateLedgerRow{}).Error; err != nil {
			return fmt.Errorf("failed to clear ledger for peer %s:%d: %w", peerHost, peerPort, err)
		}
		for i := range rows {
			rows[i].PeerHost = peerHost
			rows[i].PeerPort = peerPort
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("failed to save ledger for peer %s:%d: %w", peerHost, peerPort, err)
			}
		}
		return nil
	})
}

// LoadLedger retrieves the durable ledger mirror for one peer, used to
// rebuild peer.Ledger on startup before the first full push arrives.
func (r *PeerRepository) LoadLedger(peerHost string, peerPort int) ([]ResourceUpdateLedgerRow, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database not available")
	}
	var rows []ResourceUpdateLedgerRow
	if err := r.db.Where("peer_host = ? AND peer_port = ?", peerHost, peerPort).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load ledger for peer %s:%d: %w", peerHost, peerPort, err)
	}
	return rows, nil
}
