package plugin

import (
	goplugin "plugin"

	"github.com/cachesim/cachesim/internal/cache"
	"github.com/cachesim/cachesim/internal/store"
	simerrors "github.com/cachesim/cachesim/pkg/errors"
	"github.com/cachesim/cachesim/pkg/utils"
)

// Entry point names a shared library must export. Signatures are checked at
// load time; a mismatch is as fatal as a missing symbol.
const (
	symInitialize   = "PolicyInitialize"
	symOnHit        = "PolicyOnHit"
	symOnMiss       = "PolicyOnMiss"
	symSelectVictim = "PolicySelectVictim"
	symOnRemove     = "PolicyOnRemove"
	symFinalize     = "PolicyFinalize" // optional
)

// Load opens the shared library at path, resolves the policy entry points
// and returns them as a CallbackSet. Any failure here must happen before the
// first request is processed, so callers construct their caches eagerly.
func Load(path string) (CallbackSet, error) {
	var cs CallbackSet

	lib, err := goplugin.Open(path)
	if err != nil {
		return cs, simerrors.Wrap(simerrors.ErrCodePluginLoad,
			"failed to open policy library", err).
			WithComponent("plugin").WithDetail("path", path)
	}

	lookup := func(name string) (goplugin.Symbol, error) {
		sym, err := lib.Lookup(name)
		if err != nil {
			return nil, simerrors.Wrap(simerrors.ErrCodePluginSymbol,
				"policy library does not export "+name, err).
				WithComponent("plugin").WithDetail("path", path)
		}
		return sym, nil
	}
	badSig := func(name string) error {
		return simerrors.Newf(simerrors.ErrCodePluginSignature,
			"%s has the wrong signature", name).
			WithComponent("plugin").WithDetail("path", path)
	}

	sym, err := lookup(symInitialize)
	if err != nil {
		return cs, err
	}
	init, ok := sym.(func(uint64) interface{})
	if !ok {
		return cs, badSig(symInitialize)
	}

	sym, err = lookup(symOnHit)
	if err != nil {
		return cs, err
	}
	onHit, ok := sym.(func(interface{}, uint64, uint64))
	if !ok {
		return cs, badSig(symOnHit)
	}

	sym, err = lookup(symOnMiss)
	if err != nil {
		return cs, err
	}
	onMiss, ok := sym.(func(interface{}, uint64, uint64))
	if !ok {
		return cs, badSig(symOnMiss)
	}

	sym, err = lookup(symSelectVictim)
	if err != nil {
		return cs, err
	}
	selectVictim, ok := sym.(func(interface{}, uint64, uint64) uint64)
	if !ok {
		return cs, badSig(symSelectVictim)
	}

	sym, err = lookup(symOnRemove)
	if err != nil {
		return cs, err
	}
	onRemove, ok := sym.(func(interface{}, uint64))
	if !ok {
		return cs, badSig(symOnRemove)
	}

	cs.Initialize = init
	cs.OnHit = onHit
	cs.OnMiss = onMiss
	cs.SelectVictim = selectVictim
	cs.OnRemove = onRemove

	// Finalize is the one optional entry point.
	if sym, lerr := lib.Lookup(symFinalize); lerr == nil {
		fin, ok := sym.(func(interface{}))
		if !ok {
			return cs, badSig(symFinalize)
		}
		cs.Finalize = fin
	}

	return cs, nil
}

func init() {
	cache.Register("plugin", map[string]string{"path": ""},
		func(st *store.Store, capacity uint64, params map[string]string, logger *utils.Logger) (cache.Policy, error) {
			path := params["path"]
			if path == "" {
				return nil, simerrors.New(simerrors.ErrCodeInvalidParam,
					"plugin policy requires a path parameter").
					WithComponent("plugin")
			}
			cs, err := Load(path)
			if err != nil {
				return nil, err
			}
			if logger != nil {
				logger.Info("loaded policy library", map[string]interface{}{
					"path": path,
				})
			}
			return NewCallbackPolicy("plugin:"+path, st, capacity, cs)
		})
}
