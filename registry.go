package mdns

import (
	"strings"
	"sync"
)

// Registry is the process-wide table of registered service advertisements,
// keyed by a monotonically assigned id, with secondary lookup by service
// type (one-to-many) and by instance name (one-to-one, last write wins).
// It also holds the immutable local host name.
//
// Registry is safe for concurrent use: readers (question dispatch in each
// engine) take a shared lock, writers (Register/Unregister from the
// façade) take an exclusive one, and lock hold times never span a
// suspension point.
type Registry struct {
	mu       sync.RWMutex
	hostname string

	nextID uint64
	byID   map[uint64]ServiceEntry
	byType map[string][]uint64 // key: strings.ToLower(typ)
	byName map[string]uint64   // key: strings.ToLower(instance)
}

// NewRegistry creates an empty registry. hostname is normalized to end
// with ".local." if it doesn't already.
func NewRegistry(hostname string) *Registry {
	return &Registry{
		hostname: normalizeName(ensureLocalSuffix(hostname)),
		byID:     make(map[uint64]ServiceEntry),
		byType:   make(map[string][]uint64),
		byName:   make(map[string]uint64),
	}
}

// Hostname returns the registry's immutable host name.
func (r *Registry) Hostname() string {
	return r.hostname
}

// Register assigns a fresh id to data, inserts it into the primary table
// and the type index, and returns the id. It does not check for a
// colliding instance name; the last registration with a given name wins
// secondary lookups, matching spec.md §4.1.
func (r *Registry) Register(data ServiceData) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID

	r.byID[id] = ServiceEntry{ID: id, ServiceData: data}

	typeKey := strings.ToLower(data.Type)
	r.byType[typeKey] = append(r.byType[typeKey], id)

	r.byName[strings.ToLower(data.Instance)] = id

	return id
}

// Unregister removes id from every index and returns the ServiceData that
// was removed. The second return value is false if id was already absent.
func (r *Registry) Unregister(id uint64) (ServiceData, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byID[id]
	if !ok {
		return ServiceData{}, false
	}
	delete(r.byID, id)

	typeKey := strings.ToLower(entry.Type)
	ids := r.byType[typeKey]
	for i, existing := range ids {
		if existing == id {
			r.byType[typeKey] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(r.byType[typeKey]) == 0 {
		delete(r.byType, typeKey)
	}

	nameKey := strings.ToLower(entry.Instance)
	if r.byName[nameKey] == id {
		delete(r.byName, nameKey)
	}

	return entry.ServiceData, true
}

// updateTXT replaces the TXT payload of a registered service in place,
// leaving its id, type, instance name, and port untouched.
func (r *Registry) updateTXT(id uint64, txt []string) (ServiceData, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byID[id]
	if !ok {
		return ServiceData{}, false
	}
	entry.TXT = txt
	r.byID[id] = entry
	return entry.ServiceData, true
}

// FindByID returns the registered service with the given id, if any.
func (r *Registry) FindByID(id uint64) (ServiceData, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.byID[id]
	return entry.ServiceData, ok
}

// FindByType returns every registered service whose type matches typ,
// case-insensitively.
func (r *Registry) FindByType(typ string) []ServiceData {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byType[strings.ToLower(typ)]
	if len(ids) == 0 {
		return nil
	}
	out := make([]ServiceData, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.byID[id].ServiceData)
	}
	return out
}

// FindByName returns the registered service whose instance name matches
// name, case-insensitively. If registrations collided on the same name,
// any one of them may be returned.
func (r *Registry) FindByName(name string) (ServiceData, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return ServiceData{}, false
	}
	return r.byID[id].ServiceData, true
}

// Types returns the set of currently registered service types, each
// appearing once.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.byType))
	for _, ids := range r.byType {
		if len(ids) == 0 {
			continue
		}
		out = append(out, r.byID[ids[0]].Type)
	}
	return out
}
