package cache

import (
	"github.com/cachesim/cachesim/internal/store"
	simerrors "github.com/cachesim/cachesim/pkg/errors"
	"github.com/cachesim/cachesim/pkg/types"
	"github.com/cachesim/cachesim/pkg/utils"
)

// Config describes one cache instance.
type Config struct {
	// Name labels the instance in logs and reports. Optional.
	Name string

	// Policy is the registered policy name.
	Policy string

	// CapacityBytes is the total byte budget.
	CapacityBytes uint64

	// Params is the policy's parameter surface.
	Params map[string]string

	// Strict enables full invariant re-validation after every operation.
	// Expensive; meant for tests and debugging, not measurement runs.
	Strict bool

	// Logger receives kernel and policy diagnostics. Optional.
	Logger *utils.Logger
}

// Cache is one simulated cache instance: the object store, the eviction
// policy bound to it, and the uniform lifecycle control flow. A Cache is
// single-threaded; the driver gives each configuration its own instance.
type Cache struct {
	name     string
	capacity uint64
	store    *store.Store
	policy   Policy
	strict   bool
	clock    uint64
	logger   *utils.Logger
}

// New builds a cache from a configuration. Policy construction errors are
// configuration errors and fail before any request is processed.
func New(cfg Config) (*Cache, error) {
	if cfg.CapacityBytes == 0 {
		return nil, simerrors.New(simerrors.ErrCodeInvalidConfig,
			"cache capacity must be positive").WithComponent("cache")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = utils.NewLogger(nil)
	}
	st := store.New(0)
	pol, err := NewPolicy(cfg.Policy, st, cfg.CapacityBytes, cfg.Params, logger)
	if err != nil {
		return nil, err
	}
	name := cfg.Name
	if name == "" {
		name = cfg.Policy
	}
	return &Cache{
		name:     name,
		capacity: cfg.CapacityBytes,
		store:    st,
		policy:   pol,
		strict:   cfg.Strict,
		logger:   logger.WithComponent("cache"),
	}, nil
}

// NewWithPolicy builds a cache around an already-constructed policy bound to
// st. Used by the plugin loader and by tests that assemble policies by hand.
func NewWithPolicy(name string, capacity uint64, st *store.Store, pol Policy, logger *utils.Logger) (*Cache, error) {
	if capacity == 0 {
		return nil, simerrors.New(simerrors.ErrCodeInvalidConfig,
			"cache capacity must be positive").WithComponent("cache")
	}
	if logger == nil {
		logger = utils.NewLogger(nil)
	}
	return &Cache{
		name:     name,
		capacity: capacity,
		store:    st,
		policy:   pol,
		logger:   logger.WithComponent("cache"),
	}, nil
}

// Name returns the instance label.
func (c *Cache) Name() string { return c.name }

// CapacityBytes returns the configured byte budget.
func (c *Cache) CapacityBytes() uint64 { return c.capacity }

// OccupiedBytes returns the byte sum of all indexed objects. Ghost entries
// carry size zero, so this equals the resident payload bytes.
func (c *Cache) OccupiedBytes() uint64 { return c.store.OccupiedBytes() }

// ResidentObjects counts objects holding a payload, excluding ghost and test
// metadata entries. Linear in store size; used for reports, not per-request.
func (c *Cache) ResidentObjects() uint64 {
	var n uint64
	c.store.ForEach(func(_ store.Handle, o *store.Object) bool {
		if o.Resident() {
			n++
		}
		return true
	})
	return n
}

// ResidentIDs returns the ids of resident objects, unordered.
func (c *Cache) ResidentIDs() []uint64 {
	ids := make([]uint64, 0, c.store.Count())
	c.store.ForEach(func(_ store.Handle, o *store.Object) bool {
		if o.Resident() {
			ids = append(ids, o.ID)
		}
		return true
	})
	return ids
}

// Contains reports whether id is resident.
func (c *Cache) Contains(id uint64) bool {
	h := c.store.Find(id)
	return h != store.NilHandle && c.store.Obj(h).Resident()
}

// Store exposes the object store to policies and tests.
func (c *Cache) Store() *store.Store { return c.store }

// Policy exposes the bound policy.
func (c *Cache) Policy() Policy { return c.policy }

// Apply runs one request through the lifecycle: lookup, hit callback or
// miss handling with eviction-until-space, then insert. Every returned error
// is fatal to the run; capacity violations are not errors but the
// OutcomeRejected result.
func (c *Cache) Apply(req *types.Request) (types.Outcome, error) {
	c.clock++
	var outcome types.Outcome
	var err error
	switch req.Op {
	case types.OpRemove:
		outcome = c.applyRemove(req)
	default:
		outcome, err = c.applyGet(req)
	}
	if err != nil {
		return outcome, err
	}
	if c.strict {
		if err := c.validate(); err != nil {
			return outcome, err
		}
	}
	return outcome, nil
}

func (c *Cache) applyGet(req *types.Request) (types.Outcome, error) {
	h := c.store.Find(req.ID)
	if h != store.NilHandle && c.store.Obj(h).Resident() {
		c.store.Obj(h).LastAccess = c.clock
		c.policy.OnHit(h, req)
		return types.OutcomeHit, nil
	}

	// Miss. An object that cannot fit is rejected without mutating the
	// store, reported distinctly from an ordinary miss.
	if req.Size > c.capacity || !c.policy.Admit(req) {
		return types.OutcomeRejected, nil
	}

	for !c.policy.CanInsert(req) {
		if c.store.OccupiedBytes() == 0 {
			// Unreachable when Admit is sound: nothing left to free.
			return types.OutcomeMiss, simerrors.Newf(simerrors.ErrCodeEmptyEviction,
				"eviction requested with empty store (object %d, size %d)", req.ID, req.Size).
				WithComponent("cache").WithOperation("evict")
		}
		before := c.store.OccupiedBytes()
		if err := c.policy.Evict(req); err != nil {
			return types.OutcomeMiss, err
		}
		if c.store.OccupiedBytes() >= before {
			return types.OutcomeMiss, simerrors.Newf(simerrors.ErrCodeEvictionStalled,
				"policy %s freed no bytes (occupied %d)", c.policy.Name(), before).
				WithComponent("cache").WithOperation("evict")
		}
	}

	if h != store.NilHandle {
		// Freeing space can trim the requester's own ghost or test
		// entry (s3fifo ghost-cap trim, clockpro test prune). Re-resolve
		// so a vanished entry becomes a plain insert instead of a revive
		// through a dangling handle.
		h = c.store.Find(req.ID)
	}
	if h == store.NilHandle {
		var err error
		h, err = c.store.Insert(req.ID, req.Size)
		if err != nil {
			return types.OutcomeMiss, err
		}
	}
	c.store.Obj(h).LastAccess = c.clock
	c.policy.OnMiss(h, req)
	return types.OutcomeMiss, nil
}

func (c *Cache) applyRemove(req *types.Request) types.Outcome {
	h := c.store.Find(req.ID)
	if h == store.NilHandle || !c.store.Obj(h).Resident() {
		return types.OutcomeNoop
	}
	c.policy.OnRemove(h)
	c.store.RemoveHandle(h)
	return types.OutcomeRemoved
}

// validate re-checks the accounting invariants against the arena, plus the
// capacity bound. Only run in strict mode.
func (c *Cache) validate() error {
	if err := c.store.CheckConsistency(); err != nil {
		return err
	}
	if occ := c.store.OccupiedBytes(); occ > c.capacity {
		return simerrors.Newf(simerrors.ErrCodeAccountingDrift,
			"occupied %d exceeds capacity %d", occ, c.capacity).
			WithComponent("cache")
	}
	return nil
}

// Close releases the policy's resources.
func (c *Cache) Close() error {
	return c.policy.Close()
}
