package node

// MomInfo is one record per execution host, spec.md section 3
// "Mom record (mominfo_t)": the stream handle, the IPs for this host, and
// a discriminated payload distinguishing the Server's view
// (mom_svrinfo_t) from the MoM's own view (mom_vninfo_t). This package
// only needs the Server-side view. Mom and peer-server records are
// separate types rather than one struct discriminated by
// mi_port == mi_rmport; MomInfo does not implement peer.DaemonPeer (it
// has no PeerName or PeerAddr method), so peer.Server is that
// interface's only implementation.
type MomInfo struct {
	Name       string
	Stream     string // transport-level stream/connection identifier, opaque here
	IPs        []string
	Port       int
	VnodeNames []string // children array: every vnode this Mom parents, natural vnode first
	Arch       string
	RunningJobs []string
}

// NaturalVnode returns the name of this Mom's vnode[0], the one whose
// deletion tears down the whole Mom record (spec.md section 3 "Lifecycle
// ownership").
func (m *MomInfo) NaturalVnode() string {
	if len(m.VnodeNames) == 0 {
		return ""
	}
	return m.VnodeNames[0]
}

// AddVnode appends a vnode this Mom parents.
func (m *MomInfo) AddVnode(name string) {
	for _, v := range m.VnodeNames {
		if v == name {
			return
		}
	}
	m.VnodeNames = append(m.VnodeNames, name)
}
