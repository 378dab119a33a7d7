package attribute

import "fmt"

// EndAttributes is the sentinel attribute name that terminates a recovery
// stream, spec.md section 4.1 "Decode/recovery": a run of Svrattrl
// records closed by a record whose name equals EndAttributes.
const EndAttributes = "END"

// UnknownBucket is where a job's recovery decode files attribute names it
// does not recognize, rather than discarding them, spec.md section 4.1:
// "unknown names land in a per-job catch-all bucket rather than being
// silently dropped." Other entity types (node, queue, server,
// reservation, scheduler) log and discard unknown names instead.
type UnknownBucket struct {
	entries []*Svrattrl
}

func (b *UnknownBucket) add(s *Svrattrl) { b.entries = append(b.entries, s) }

// Entries returns the accumulated unrecognized records, preserved so a
// later version upgrade (which may newly recognize a name this binary
// didn't) can re-decode them without data loss.
func (b *UnknownBucket) Entries() []*Svrattrl { return b.entries }

// DecodeRecovery replays a recovery stream of Svrattrl records into arr,
// stopping at the EndAttributes sentinel. unknown, if non-nil, receives
// records whose name has no registered Definition (the job catch-all);
// when unknown is nil, such records are simply skipped, modelling the
// "log and discard" behavior for non-job entities. Entity-limit
// attributes are expected as one SET record establishing the key
// followed by any number of INCR records against the same key, per
// spec.md section 4.1's decode/recovery sequencing.
func DecodeRecovery(reg *Registry, arr *Array, records []*Svrattrl, unknown *UnknownBucket) error {
	for _, rec := range records {
		if rec.Name == EndAttributes {
			return nil
		}
		d, ok := reg.Lookup(rec.Name)
		if !ok {
			if unknown != nil {
				unknown.add(rec)
			}
			continue
		}
		v := arr.GetByIndex(d.Index)
		if err := d.Decode(v, rec.Name, rec.Resource, rec.Value); err != nil {
			return fmt.Errorf("decode %s: %w", rec.Name, err)
		}
		if d.Kind == EntityLimitKind {
			if err := applyEntityLimitRecord(v, rec); err != nil {
				return fmt.Errorf("decode %s: %w", rec.Name, err)
			}
		}
		v.Flags |= FlagSet
		v.InvalidateCache()
	}
	return fmt.Errorf("attribute: recovery stream missing %s sentinel", EndAttributes)
}

// applyEntityLimitRecord folds one wire record into an EntityLimitKind
// cell: SET establishes the cell (overwriting), INCR/DECR adjust it. This
// is the concrete mechanics behind the SET-then-INCR sequence recovery
// expects for entity limits.
func applyEntityLimitRecord(v *Value, rec *Svrattrl) error {
	el := v.EntityLimitValue()
	if el == nil {
		el = NewEntityLimit()
		v.raw = el
	}
	key := LimitKey{Resource: rec.Resource}
	var n int64
	if _, err := fmt.Sscanf(rec.Value, "%d", &n); err != nil {
		return fmt.Errorf("entity limit value %q: %w", rec.Value, err)
	}
	switch rec.Op {
	case OpSet, OpInternal:
		el.Set(key, n)
	case OpIncr:
		el.Incr(key, n)
	case OpDecr:
		el.Incr(key, -n)
	}
	return nil
}
