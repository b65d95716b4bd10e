package policy

import (
	"github.com/cachesim/cachesim/internal/store"
	simerrors "github.com/cachesim/cachesim/pkg/errors"
	"github.com/cachesim/cachesim/pkg/types"
)

// base carries the state every policy shares: the store it mutates and the
// byte budget it enforces. Embedding it gives simple policies the default
// admission and capacity checks; multi-tier policies override them.
type base struct {
	name     string
	st       *store.Store
	capacity uint64
}

// Name returns the registered policy name.
func (b *base) Name() string { return b.name }

// Admit accepts any object that fits the cache at all.
func (b *base) Admit(req *types.Request) bool {
	return req.Size <= b.capacity
}

// CanInsert reports whether the object fits next to the current residents.
func (b *base) CanInsert(req *types.Request) bool {
	return b.st.OccupiedBytes()+req.Size <= b.capacity
}

// Close is a no-op for policies without external resources.
func (b *base) Close() error { return nil }

// errEmptyQueue builds the fatal error for a victim selection that found
// nothing to evict. Unreachable when the kernel's gates are sound.
func errEmptyQueue(policy string) error {
	return simerrors.Newf(simerrors.ErrCodeEmptyEviction,
		"%s: victim selection on empty queue", policy).WithComponent("policy")
}
