// Package registry implements the process-wide operation registry: a
// mutex-guarded map from operation class to cancellation token,
// guaranteeing at-most-one live job per class (§4.1).
package registry

import (
	"sync"

	"github.com/foctal/netprobe/internal/model"
)

// Registry is a plain-mutex, short-critical-section map: map ops only
// happen under the lock, nothing blocking runs while it's held.
type Registry struct {
	mu   sync.Mutex
	byID map[model.OperationClass]Token
}

func New() *Registry {
	return &Registry{byID: make(map[model.OperationClass]Token)}
}

// Start cancels and drops any existing token for class, then installs and
// returns a fresh one. The returned token is the unique live token for class
// until the next Start or Cancel call for it (§4.1 invariant).
func (r *Registry) Start(class model.OperationClass) Token {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byID[class]; ok {
		old.Cancel()
		delete(r.byID, class)
	}

	tok := newToken()
	r.byID[class] = tok
	return tok
}

// Cancel cancels and removes the live token for class, if any, and reports
// whether one was present.
func (r *Registry) Cancel(class model.OperationClass) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	tok, ok := r.byID[class]
	if !ok {
		return false
	}
	tok.Cancel()
	delete(r.byID, class)
	return true
}
