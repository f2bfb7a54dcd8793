package dncore

import (
	"sort"
	"strings"
)

// ResolveResult is the resolution data of a single service instance.
type ResolveResult struct {
	// Host is a target host name, e.g. "robot.local".
	Host string

	// Port is a service port.
	Port int

	// Addresses are the resolved host addresses.
	Addresses []string

	// Txt is the instance TXT record.
	Txt *TxtRecord
}

// Reconciler merges raw per-interface discovery events into logical service records.
//
// A logical service (name, type, domain) can be announced by multiple instances, one
// per interface/protocol. Each announced instance is added to the pending set of its
// record and has to be resolved before the record becomes observable. The record is
// reported as added exactly once, when its pending set becomes empty for the first time,
// and as removed once, when its last instance disappears.
//
// Remarks:
//   - Not safe for concurrent use, it's owned by a single browser loop.
//   - Returned records are copies, they are never modified afterwards.
//   - Instances are resolved once. Re-announcement of a tracked instance is ignored,
//     so a changed port or TXT record is observed only after the instance is removed
//     and announced again.
type Reconciler struct {
	opts    BrowseOptions
	entries map[ServiceKey]*reconcileEntry
}

type reconcileEntry struct {
	record *ServiceRecord

	// Value is true once the instance is resolved.
	instances map[InstanceKey]bool
	complete  bool
}

// NewReconciler is an initialization of Reconciler.
//
// Parameters:
//   - opts - options of the browse session, used to fill transport and IP version.
func NewReconciler(opts BrowseOptions) *Reconciler {
	return &Reconciler{
		opts:    opts,
		entries: make(map[ServiceKey]*reconcileEntry),
	}
}

// Seen tracks the announced instance.
//
// Returns true if the instance was added to the pending set and should be resolved.
// Repeated announcements of a known instance return false, whether it's pending or
// resolved, and never trigger another resolution.
func (r *Reconciler) Seen(inst InstanceKey) bool {
	key := inst.ServiceKey()

	entry, ok := r.entries[key]
	if !ok {
		entry = &reconcileEntry{
			record: &ServiceRecord{
				Name:        key.Name,
				ServiceType: key.ServiceType,
				Transport:   r.opts.Transport,
				Domain:      key.Domain,
				IPVersion:   r.opts.IPVersion,
				Txt:         NewTxtRecord(),
			},
			instances: make(map[InstanceKey]bool),
		}
		r.entries[key] = entry
	}

	if _, ok := entry.instances[inst]; ok {
		return false
	}

	entry.instances[inst] = false

	return true
}

// Resolved merges the resolution data of the pending instance.
//
// Returns the record to be reported as added, if the record became complete.
// Results for instances which are not pending are ignored.
func (r *Reconciler) Resolved(inst InstanceKey, res ResolveResult) (*ServiceRecord, bool) {
	entry, ok := r.entries[inst.ServiceKey()]
	if !ok {
		return nil, false
	}

	if resolved, ok := entry.instances[inst]; !ok || resolved {
		return nil, false
	}

	entry.instances[inst] = true
	entry.merge(res)

	return r.tryComplete(entry)
}

// ResolveFailed drops the pending instance which can't be resolved.
//
// Returns the record to be reported as added, if other instances of the record
// are resolved and nothing else is pending.
func (r *Reconciler) ResolveFailed(inst InstanceKey) (*ServiceRecord, bool) {
	key := inst.ServiceKey()

	entry, ok := r.entries[key]
	if !ok {
		return nil, false
	}

	if resolved, ok := entry.instances[inst]; !ok || resolved {
		return nil, false
	}

	delete(entry.instances, inst)

	if len(entry.instances) == 0 {
		delete(r.entries, key)

		return nil, false
	}

	return r.tryComplete(entry)
}

// Removed handles the instance which is no longer advertised.
//
// Returns the record to be reported as removed, if it was the last instance of
// a complete record.
//
// Remarks:
//   - Unknown instances are ignored.
//   - An incomplete record is discarded as a whole, without being reported.
func (r *Reconciler) Removed(inst InstanceKey) (*ServiceRecord, bool) {
	key := inst.ServiceKey()

	entry, ok := r.entries[key]
	if !ok {
		return nil, false
	}

	if _, ok := entry.instances[inst]; !ok {
		return nil, false
	}

	if !entry.complete {
		delete(r.entries, key)

		return nil, false
	}

	delete(entry.instances, inst)

	if len(entry.instances) > 0 {
		return nil, false
	}

	delete(r.entries, key)

	return entry.record.Clone(), true
}

// RemoveSource removes all instances announced by the source.
//
// Returns the records to be reported as removed, ordered by name.
func (r *Reconciler) RemoveSource(source string) []*ServiceRecord {
	var insts []InstanceKey

	for _, entry := range r.entries {
		for inst := range entry.instances {
			if inst.Source == source {
				insts = append(insts, inst)
			}
		}
	}

	var records []*ServiceRecord

	for _, inst := range insts {
		if record, ok := r.Removed(inst); ok {
			records = append(records, record)
		}
	}

	sortRecords(records)

	return records
}

// Records returns the complete records, ordered by name.
func (r *Reconciler) Records() []*ServiceRecord {
	var records []*ServiceRecord

	for _, entry := range r.entries {
		if entry.complete {
			records = append(records, entry.record.Clone())
		}
	}

	sortRecords(records)

	return records
}

// Len returns the number of tracked logical services, complete or not.
func (r *Reconciler) Len() int {
	return len(r.entries)
}

func (r *Reconciler) tryComplete(entry *reconcileEntry) (*ServiceRecord, bool) {
	if entry.complete {
		return nil, false
	}

	for _, resolved := range entry.instances {
		if !resolved {
			return nil, false
		}
	}

	entry.complete = true

	return entry.record.Clone(), true
}

func (e *reconcileEntry) merge(res ResolveResult) {
	if e.record.Host == "" {
		e.record.Host = strings.TrimSuffix(res.Host, ".")
		e.record.Port = res.Port
	}

	for _, addr := range res.Addresses {
		if !containsString(e.record.Addresses, addr) {
			e.record.Addresses = append(e.record.Addresses, addr)
		}
	}

	if e.record.Address == "" && len(e.record.Addresses) > 0 {
		e.record.Address = e.record.Addresses[0]
	}

	e.record.Txt.Merge(res.Txt)
}

func containsString(strs []string, s string) bool {
	for _, str := range strs {
		if str == s {
			return true
		}
	}

	return false
}

func sortRecords(records []*ServiceRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Key().String() < records[j].Key().String()
	})
}
