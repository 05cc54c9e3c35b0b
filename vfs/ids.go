package vfs

// IDs interns node identities. A node is identified by its parent's ID and
// its raw name, so the same path always maps to the same ID within a
// session, whatever display charset is active.
type IDs struct {
	ids   map[idKey]uint32
	names []string
}

type idKey struct {
	parent uint32
	name   string
}

// NoID is never assigned to a node.
const NoID uint32 = 0

// NewIDs returns an empty table.
func NewIDs() *IDs {
	return &IDs{ids: make(map[idKey]uint32), names: []string{""}}
}

// Intern returns the ID for name under parent, assigning one if needed.
// Top-level nodes use NoID as parent.
func (t *IDs) Intern(parent uint32, name string) uint32 {
	k := idKey{parent: parent, name: name}
	if id, ok := t.ids[k]; ok {
		return id
	}
	id := uint32(len(t.names)) //nolint:gosec // bounded by memory long before overflow
	t.ids[k] = id
	t.names = append(t.names, name)
	return id
}

// Name returns the raw name an ID was interned with.
func (t *IDs) Name(id uint32) string {
	if int(id) >= len(t.names) {
		return ""
	}
	return t.names[id]
}

// Len returns the number of interned IDs.
func (t *IDs) Len() int {
	return len(t.names) - 1
}
