package quill

import (
	"fmt"
	"sync"

	"github.com/syssam/quill/schema"
)

// Registry is an append-only mapping from table name to model
// descriptor. It is populated once at startup and read by the
// migration engine; entries are never removed and re-registering the
// same table is a no-op, so init-order duplication stays harmless.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	byName map[string]*schema.Model
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*schema.Model)}
}

// Register adds a model descriptor. Registering the same table twice
// with the same descriptor is a no-op; a different descriptor under an
// already-registered table name is an error.
func (r *Registry) Register(m *schema.Model) error {
	if err := m.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byName[m.Table]; ok {
		if existing == m {
			return nil
		}
		return fmt.Errorf("quill: table %q is already registered with a different descriptor", m.Table)
	}
	r.byName[m.Table] = m
	r.order = append(r.order, m.Table)
	return nil
}

// Lookup returns the descriptor registered for the table, or nil.
func (r *Registry) Lookup(table string) *schema.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[table]
}

// Models returns all registered descriptors in registration order.
func (r *Registry) Models() []*schema.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	models := make([]*schema.Model, len(r.order))
	for i, name := range r.order {
		models[i] = r.byName[name]
	}
	return models
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
