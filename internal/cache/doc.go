/*
Package cache implements the policy-agnostic cache lifecycle kernel every
simulated eviction algorithm runs on.

A Cache is one simulated instance: an object store (internal/store), a bound
eviction policy, and the uniform control flow that replays trace requests
against them. Policies differ only in auxiliary state and victim selection;
the kernel they plug into is shared.

# Lifecycle

Every request follows the same path:

	┌────────────┐    resident     ┌──────────────┐
	│  find(id)  │ ──────────────▶ │ policy.OnHit │
	└────────────┘                 └──────────────┘
	       │ absent / ghost
	       ▼
	┌────────────────────┐  no   ┌───────────────┐
	│ fits / policy.Admit│ ────▶ │   rejected    │
	└────────────────────┘       └───────────────┘
	       │ yes
	       ▼
	┌────────────────────┐ while ┌───────────────┐
	│  policy.CanInsert  │ ────▶ │ policy.Evict  │
	└────────────────────┘ false └───────────────┘
	       │ true
	       ▼
	┌────────────┐               ┌───────────────┐
	│   insert   │ ────────────▶ │ policy.OnMiss │
	└────────────┘               └───────────────┘

The eviction loop is guaranteed to terminate: a request larger than the cache
(or the admitting tier) is rejected up front, and every Evict call must lower
occupied bytes or the kernel aborts with a consistency error rather than spin.

# Invariants

Outside an in-progress operation:

  - occupied bytes equal the byte sum of indexed objects;
  - every indexed object has exactly one hash-index entry;
  - an object belongs to at most one primary queue per policy tier.

Strict mode re-validates the accounting after every operation. Violations are
fatal; the kernel never repairs state, because drifted accounting means a
policy or kernel bug and silent continuation would corrupt every number the
simulation reports.

# Policies

Built-in policies live in internal/policy and register themselves by name
through Register at init time. Plugin-backed policies (internal/plugin)
satisfy the same Policy interface; the kernel cannot tell them apart from
built-ins.

# Errors

Capacity violations (object larger than the cache) are not errors: the
request is rejected, counted distinctly, and processing continues. Everything
the kernel returns as an error (duplicate insert, eviction from an empty
store, accounting drift) is fatal to the configuration's run.
*/
package cache
