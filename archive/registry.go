package archive

import "weak"

// Registry maps containers to their live instances. It holds weak
// pointers only, so it never keeps an instance alive; instances remove
// themselves when their last reference drops.
type Registry struct {
	m map[regKey]weak.Pointer[Instance]
}

type regKey struct {
	id  uint32
	sig string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{m: make(map[regKey]weak.Pointer[Instance])}
}

// Lookup returns the live instance mounted by driver sig on container id.
func (r *Registry) Lookup(id uint32, sig string) *Instance {
	k := regKey{id: id, sig: sig}
	wp, ok := r.m[k]
	if !ok {
		return nil
	}
	inst := wp.Value()
	if inst == nil || inst.refs <= 0 {
		delete(r.m, k)
		return nil
	}
	return inst
}

// Len returns the number of registered instances, live or not yet swept.
func (r *Registry) Len() int {
	return len(r.m)
}

func (r *Registry) add(inst *Instance) {
	r.m[regKey{id: inst.container.ID(), sig: inst.sig}] = weak.Make(inst)
}

func (r *Registry) remove(inst *Instance) {
	k := regKey{id: inst.container.ID(), sig: inst.sig}
	if wp, ok := r.m[k]; ok && wp.Value() == inst {
		delete(r.m, k)
	}
}
