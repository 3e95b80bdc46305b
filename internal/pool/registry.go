package pool

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	fpmath "AMMLedger/internal/math"
)

// Registry holds every initialized pool, addressed by key hash.
type Registry struct {
	pools map[common.Hash]*Pool
}

func NewRegistry() *Registry {
	return &Registry{pools: make(map[common.Hash]*Pool)}
}

// Initialize creates the pool for key at the given starting tick. A key
// can be initialized exactly once.
func (r *Registry) Initialize(key Key, initialTick int32) (*Pool, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	id := key.ID()
	if _, exists := r.pools[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrPoolAlreadyInitialized, id.Hex())
	}
	sqrtRatio, err := fpmath.TickToSqrtRatio(initialTick)
	if err != nil {
		return nil, err
	}
	p := newPool(key, initialTick, sqrtRatio)
	r.pools[id] = p
	return p, nil
}

// Get returns the pool for id.
func (r *Registry) Get(id common.Hash) (*Pool, error) {
	p, ok := r.pools[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotInitialized, id.Hex())
	}
	return p, nil
}

// Len returns the number of initialized pools.
func (r *Registry) Len() int { return len(r.pools) }

// IDs returns the identifiers of all initialized pools.
func (r *Registry) IDs() []common.Hash {
	out := make([]common.Hash, 0, len(r.pools))
	for id := range r.pools {
		out = append(out, id)
	}
	return out
}

// Snapshot deep-copies every pool for later Restore.
func (r *Registry) Snapshot() map[common.Hash]*Pool {
	snap := make(map[common.Hash]*Pool, len(r.pools))
	for id, p := range r.pools {
		snap[id] = p.clone()
	}
	return snap
}

// Restore replaces the registry contents with a snapshot.
func (r *Registry) Restore(snap map[common.Hash]*Pool) {
	r.pools = make(map[common.Hash]*Pool, len(snap))
	for id, p := range snap {
		r.pools[id] = p.clone()
	}
}
