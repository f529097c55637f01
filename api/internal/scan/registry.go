package scan

import (
	"sync"

	"github.com/google/uuid"
)

// Factory builds a session with the given id.
type Factory func(id string) *Session

// Registry keeps one session per key (an API session id or a chat id).
type Registry struct {
	newSession Factory
	m          sync.Map // id -> *Session
}

func NewRegistry(f Factory) *Registry {
	return &Registry{newSession: f}
}

// Create registers a session under a fresh random id.
func (r *Registry) Create() *Session {
	s := r.newSession(uuid.NewString())
	r.m.Store(s.ID(), s)
	return s
}

func (r *Registry) Get(id string) (*Session, bool) {
	v, ok := r.m.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

func (r *Registry) GetOrCreate(id string) *Session {
	if s, ok := r.Get(id); ok {
		return s
	}
	v, _ := r.m.LoadOrStore(id, r.newSession(id))
	return v.(*Session)
}

// Delete resets and forgets a session. Reports whether it existed.
func (r *Registry) Delete(id string) bool {
	v, ok := r.m.LoadAndDelete(id)
	if ok {
		v.(*Session).Reset()
	}
	return ok
}

func (r *Registry) Len() int {
	n := 0
	r.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
