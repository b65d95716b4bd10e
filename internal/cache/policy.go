package cache

import (
	"sort"
	"sync"

	"github.com/cachesim/cachesim/internal/store"
	simerrors "github.com/cachesim/cachesim/pkg/errors"
	"github.com/cachesim/cachesim/pkg/types"
	"github.com/cachesim/cachesim/pkg/utils"
)

// Policy is the contract every eviction algorithm implements. The kernel
// drives the uniform lookup/miss/evict control flow; the policy owns the
// auxiliary state (queues, ghost lists, frequency counters, clock hands)
// layered on the shared object store.
//
// A policy-backed cache and a plugin-backed cache are indistinguishable to
// the kernel: both arrive here.
type Policy interface {
	// Name returns the registered policy name.
	Name() string

	// Admit reports whether the request's object is insertable at all.
	// Returning false rejects the request without mutating the store;
	// the kernel reports it distinctly from an ordinary miss.
	Admit(req *types.Request) bool

	// CanInsert reports whether the cache currently has room for the
	// request. While it returns false the kernel invokes Evict.
	CanInsert(req *types.Request) bool

	// OnHit fires when the requested object is resident. The policy
	// updates recency/frequency bookkeeping (reorder, bump a counter,
	// set a reference bit).
	OnHit(h store.Handle, req *types.Request)

	// OnMiss fires after the kernel made the object's record available:
	// either freshly inserted, or an existing metadata-only entry whose
	// id matched (a ghost hit). The policy initializes policy fields,
	// restores payload accounting for revived entries, and links the
	// object into its queue.
	OnMiss(h store.Handle, req *types.Request)

	// Evict frees space for the pending request. Each call must lower
	// the store's occupied bytes; the kernel treats a call that does not
	// as a fatal consistency error.
	Evict(req *types.Request) error

	// OnRemove fires before the kernel deletes a resident object on an
	// explicit remove request. The policy unlinks its bookkeeping.
	OnRemove(h store.Handle)

	// Close releases policy resources at end of run.
	Close() error
}

// Factory constructs a policy bound to a store and capacity. params carries
// the policy's configuration surface; invalid values are configuration
// errors, not runtime failures.
type Factory func(st *store.Store, capacity uint64, params map[string]string, logger *utils.Logger) (Policy, error)

type registration struct {
	factory  Factory
	defaults map[string]string
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]registration)
)

// Register makes a policy constructor available by name. It is called from
// package init functions; duplicate names panic because they indicate a
// build-level mistake, not a runtime condition.
func Register(name string, defaults map[string]string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("cache: duplicate policy registration: " + name)
	}
	registry[name] = registration{factory: factory, defaults: defaults}
}

// NewPolicy constructs a registered policy by name.
func NewPolicy(name string, st *store.Store, capacity uint64, params map[string]string, logger *utils.Logger) (Policy, error) {
	registryMu.RLock()
	reg, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, simerrors.Newf(simerrors.ErrCodeUnknownPolicy,
			"no policy registered under %q (known: %v)", name, PolicyNames()).
			WithComponent("cache")
	}
	return reg.factory(st, capacity, params, logger)
}

// PolicyNames returns the registered policy names, sorted.
func PolicyNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PolicyDefaults returns a copy of the default parameter set for a policy.
func PolicyDefaults(name string) (map[string]string, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := registry[name]
	if !ok {
		return nil, false
	}
	defaults := make(map[string]string, len(reg.defaults))
	for k, v := range reg.defaults {
		defaults[k] = v
	}
	return defaults, true
}
