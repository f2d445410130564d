package schema

import (
	"fmt"
	"sync"
)

// Registry holds compiled validators keyed by task and schema version.
// Registration happens at startup; lookups are concurrent and read-only
// afterwards, but the lock keeps dynamic registration safe too.
type Registry struct {
	mu         sync.RWMutex
	validators map[string]*Validator
}

func NewRegistry() *Registry {
	return &Registry{validators: make(map[string]*Validator)}
}

func key(task string, version int) string {
	return fmt.Sprintf("%s@v%d", task, version)
}

// Register compiles and stores a schema for a task version. Registering
// the same (task, version) twice is an error: published schema versions
// are immutable.
func (r *Registry) Register(task string, version int, schemaJSON []byte) error {
	v, err := Compile(key(task, version), schemaJSON)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(task, version)
	if _, exists := r.validators[k]; exists {
		return fmt.Errorf("schema %s already registered", k)
	}
	r.validators[k] = v
	return nil
}

// Lookup returns the validator for a task version.
func (r *Registry) Lookup(task string, version int) (*Validator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.validators[key(task, version)]
	return v, ok
}
