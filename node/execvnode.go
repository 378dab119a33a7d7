package node

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vexxhost/batchd/batcherr"
)

// VnodeShare is one chunk of a parsed exec_vnode string: a vnode name and
// the count of subnodes (ncpus) a job holds on it.
type VnodeShare struct {
	Name  string
	NCPUs int
}

// ParseExecVnode decodes a job's exec_vnode attribute, the wire format
// spec.md section 3 assigns the Run operation's ExecVnode field:
// "(node1:ncpus=2)+(node2:ncpus=1)", one parenthesized chunk per vnode,
// joined by "+". Grounded on JOB_ATR_exec_vnode's at_decode treatment in
// multi_svr.c and req_rerun.c, which parse and free this exact attribute
// string as the job's resource claim across one or more vnodes.
func ParseExecVnode(execVnode string) ([]VnodeShare, error) {
	execVnode = strings.TrimSpace(execVnode)
	if execVnode == "" {
		return nil, nil
	}
	chunks := strings.Split(execVnode, "+")
	shares := make([]VnodeShare, 0, len(chunks))
	for _, chunk := range chunks {
		chunk = strings.TrimSpace(chunk)
		if !strings.HasPrefix(chunk, "(") || !strings.HasSuffix(chunk, ")") {
			return nil, batcherr.Validation(batcherr.CodeBadAttrVal, fmt.Sprintf("exec_vnode chunk %q is not parenthesized", chunk), nil)
		}
		chunk = strings.TrimSuffix(strings.TrimPrefix(chunk, "("), ")")

		name, resources, found := strings.Cut(chunk, ":")
		if !found || name == "" {
			return nil, batcherr.Validation(batcherr.CodeBadAttrVal, fmt.Sprintf("exec_vnode chunk %q has no vnode name", chunk), nil)
		}

		ncpus := 1
		for _, kv := range strings.Split(resources, ":") {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				continue
			}
			if k != "ncpus" {
				continue
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, batcherr.Validation(batcherr.CodeBadAttrVal, fmt.Sprintf("exec_vnode chunk %q has non-integer ncpus", chunk), err)
			}
			ncpus = n
		}
		shares = append(shares, VnodeShare{Name: name, NCPUs: ncpus})
	}
	return shares, nil
}

// FormatExecVnode renders the chunk list back into exec_vnode wire form, the
// inverse of ParseExecVnode.
func FormatExecVnode(shares []VnodeShare) string {
	parts := make([]string, 0, len(shares))
	for _, s := range shares {
		parts = append(parts, fmt.Sprintf("(%s:ncpus=%d)", s.Name, s.NCPUs))
	}
	return strings.Join(parts, "+")
}
