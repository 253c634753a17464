package pipeline

import (
	"sync"

	"pipeboard/internal/logging"
)

// StageRegistry maintains the ordered set of valid stage names.
//
// Stage names double as CRM tag values. The registry is append-only for the
// lifetime of the session: defaults come first in configured order, stages
// discovered from CRM snapshots or created locally as tag columns are
// appended after them, and nothing is ever removed. Names are
// case-sensitive.
type StageRegistry struct {
	mu    sync.RWMutex
	order []string
	index map[string]bool
}

// NewStageRegistry creates a registry seeded with the default stages.
func NewStageRegistry(defaults ...string) *StageRegistry {
	r := &StageRegistry{index: make(map[string]bool, len(defaults))}
	for _, name := range defaults {
		if name == "" || r.index[name] {
			continue
		}
		r.index[name] = true
		r.order = append(r.order, name)
	}
	return r
}

// Register inserts a stage name if absent. It reports whether the name was
// newly added. Registration is idempotent.
func (r *StageRegistry) Register(name string) bool {
	if name == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.index[name] {
		return false
	}
	r.index[name] = true
	r.order = append(r.order, name)
	logging.Stages("registered stage %q (%d total)", name, len(r.order))
	return true
}

// Has reports whether a stage name is registered. Case-sensitive.
func (r *StageRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index[name]
}

// Names returns the stage names in board order.
func (r *StageRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered stages.
func (r *StageRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
