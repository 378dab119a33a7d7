package database

import "time"

// The models below are the gorm-mapped persisted rows behind the
// pbs_db.h object-CRUD contract of spec.md section 6: one struct per
// discriminated object type (NODE, JOB, RESV, SCHED, plus the peer
// and resource-update-ledger rows this implementation adds). Attribute
// values themselves are persisted through AttributeRow, a separate
// linked structure matching spec.md section 6's "Attribute lists are a
// separate linked structure (pbs_db_attr_list_t)."

// NodeRow persists one vnode.
type NodeRow struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex;size:255"`
	State     uint32
	Share     int
	PoolID    int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JobRow persists one job's fixed header; its attribute array is stored
// via AttributeRow rows keyed by (OwnerType="job", OwnerID=ID).
type JobRow struct {
	ID            string `gorm:"primaryKey;size:255"` // <seq>.<server>[:<subjob>]
	Queue         string `gorm:"size:255"`
	State         string `gorm:"size:1"`
	Substate      int
	ExecVnode     string `gorm:"type:text"`
	ArrayParentID string `gorm:"size:255;index"`
	ExitCode      int
	Ctime         time.Time
	Qtime         time.Time
	Stime         *time.Time
	Mtime         time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ReservationRow persists one reservation.
type ReservationRow struct {
	ID        string `gorm:"primaryKey;size:255"`
	Stime     time.Time
	Etime     time.Time
	State     int
	Flags     uint32
	Queue     string `gorm:"size:255"`
	Vnodes    string `gorm:"type:text"` // comma-joined vnode names
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SchedulerRow persists one per-partition Scheduler's durable fields
// (the cycle state itself is runtime-only; only the partition identity
// and down/up bookkeeping survive a restart).
type SchedulerRow struct {
	ID        uint   `gorm:"primaryKey"`
	Partition string `gorm:"uniqueIndex;size:255"`
	LastDown  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PeerServerRow persists static peer topology (spec.md section 4.5:
// "A Server knows its peers from static configuration").
type PeerServerRow struct {
	ID        uint   `gorm:"primaryKey"`
	Host      string `gorm:"size:255"`
	Port      int
	CreatedAt time.Time
}

// ResourceUpdateLedgerRow persists one outstanding INCR for a peer, the
// durable mirror of peer.Ledger so a restart can rebuild rsc_idx[P]
// without waiting for a full push.
type ResourceUpdateLedgerRow struct {
	ID        uint   `gorm:"primaryKey"`
	PeerHost  string `gorm:"size:255;index:idx_peer_job,unique"`
	PeerPort  int    `gorm:"index:idx_peer_job,unique"`
	JobID     string `gorm:"size:255;index:idx_peer_job,unique"`
	ExecVnode string `gorm:"type:text"`
	ShareJob  bool
	CreatedAt time.Time
}

// AttributeRow is the separate linked attribute-list structure named in
// spec.md section 6 (pbs_db_attr_list_t): one row per (owner, attribute
// name, resource name).
type AttributeRow struct {
	ID         uint   `gorm:"primaryKey"`
	OwnerType  string `gorm:"size:32;index:idx_owner"`
	OwnerID    string `gorm:"size:255;index:idx_owner"`
	Name       string `gorm:"size:255"`
	Resource   string `gorm:"size:255"`
	Value      string `gorm:"type:text"`
	Flags      uint32
}

// AccountingRow persists one emitted accounting record, spec.md section
// 6 "Accounting file format": "<timestamp>;<type>;<jobid>;<key=value
// ...>". Kept in the database in addition to the flat file so
// AccountingRepository can list job history without parsing log files.
type AccountingRow struct {
	ID      uint   `gorm:"primaryKey"`
	Ts      time.Time
	Type    string `gorm:"size:1"`
	JobID   string `gorm:"size:255;index"`
	Fields  string `gorm:"type:text"` // "key=value;key=value;...", keys sorted
}
