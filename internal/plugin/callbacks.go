// Package plugin lets a cache run a policy implementation that is not known
// at compile time. Two shapes are supported: a natively compiled policy
// loaded from a shared library (native.go), and an in-process callback set
// supplied by an embedding layer (this file). Both are adapted to the exact
// cache.Policy contract the built-ins implement; the kernel cannot tell a
// plugin-backed cache from a built-in one.
//
// Loading failures are configuration errors surfaced before any request is
// processed. There is no partial or degraded mode.
package plugin

import (
	"github.com/cachesim/cachesim/internal/cache"
	"github.com/cachesim/cachesim/internal/store"
	simerrors "github.com/cachesim/cachesim/pkg/errors"
	"github.com/cachesim/cachesim/pkg/types"
)

// CallbackSet is the five-operation contract external policies implement,
// plus an optional finalizer. State is whatever Initialize returned,
// threaded through every later call as an opaque value.
type CallbackSet struct {
	Initialize   func(capacity uint64) interface{}
	OnHit        func(state interface{}, id, size uint64)
	OnMiss       func(state interface{}, id, size uint64)
	SelectVictim func(state interface{}, id, size uint64) uint64
	OnRemove     func(state interface{}, id uint64)
	Finalize     func(state interface{})
}

func (cs *CallbackSet) validate() error {
	missing := ""
	switch {
	case cs.Initialize == nil:
		missing = "initialize"
	case cs.OnHit == nil:
		missing = "on_hit"
	case cs.OnMiss == nil:
		missing = "on_miss"
	case cs.SelectVictim == nil:
		missing = "select_victim"
	case cs.OnRemove == nil:
		missing = "on_remove"
	}
	if missing != "" {
		return simerrors.Newf(simerrors.ErrCodePluginSignature,
			"callback set is missing the %s operation", missing).
			WithComponent("plugin")
	}
	return nil
}

// callbackPolicy adapts a CallbackSet to cache.Policy. The external side
// owns the eviction order entirely; the adapter only translates between
// handles and ids and enforces the kernel's consistency rules on the
// returned victims.
type callbackPolicy struct {
	name     string
	st       *store.Store
	capacity uint64
	cs       CallbackSet
	state    interface{}
}

// NewCallbackPolicy wraps a callback set as a policy bound to st.
func NewCallbackPolicy(name string, st *store.Store, capacity uint64, cs CallbackSet) (cache.Policy, error) {
	if err := cs.validate(); err != nil {
		return nil, err
	}
	return &callbackPolicy{
		name:     name,
		st:       st,
		capacity: capacity,
		cs:       cs,
		state:    cs.Initialize(capacity),
	}, nil
}

func (p *callbackPolicy) Name() string { return p.name }

func (p *callbackPolicy) Admit(req *types.Request) bool {
	return req.Size <= p.capacity
}

func (p *callbackPolicy) CanInsert(req *types.Request) bool {
	return p.st.OccupiedBytes()+req.Size <= p.capacity
}

func (p *callbackPolicy) OnHit(h store.Handle, _ *types.Request) {
	o := p.st.Obj(h)
	p.cs.OnHit(p.state, o.ID, o.Size)
}

func (p *callbackPolicy) OnMiss(h store.Handle, req *types.Request) {
	p.cs.OnMiss(p.state, req.ID, req.Size)
}

// Evict asks the external policy for a victim id and removes it. A victim
// that is not resident is a consistency violation on the plugin's side and
// aborts the run like any other policy bug would.
func (p *callbackPolicy) Evict(req *types.Request) error {
	victim := p.cs.SelectVictim(p.state, req.ID, req.Size)
	h := p.st.Find(victim)
	if h == store.NilHandle {
		return simerrors.Newf(simerrors.ErrCodeMissingObject,
			"plugin %s selected non-resident victim %d", p.name, victim).
			WithComponent("plugin").WithOperation("evict")
	}
	p.cs.OnRemove(p.state, victim)
	p.st.RemoveHandle(h)
	return nil
}

func (p *callbackPolicy) OnRemove(h store.Handle) {
	p.cs.OnRemove(p.state, p.st.Obj(h).ID)
}

func (p *callbackPolicy) Close() error {
	if p.cs.Finalize != nil {
		p.cs.Finalize(p.state)
	}
	return nil
}
