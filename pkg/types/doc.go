/*
Package types provides the core data structures and narrow interfaces shared
across the cachesim simulation engine.

This package is the foundation of the system: it defines the request and
statistics value types exchanged between the trace readers, the cache
lifecycle kernel, and the simulation driver, without importing any of them.

# Architecture Overview

cachesim follows a layered architecture with well-defined interfaces between
components:

	┌─────────────────────────────────────────────┐
	│                CLI / Config                 │
	│        (cmd/cachesim, internal/config)      │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│            Simulation Driver                │
	│            (internal/driver)                │
	└─────────────────────────────────────────────┘
	          │           │            │
	┌─────────┴───┐ ┌─────┴─────┐ ┌────┴────────┐
	│   Trace     │ │  Cache    │ │    MRC      │
	│  Readers    │ │  Kernel   │ │ Estimator   │
	│             │ │ +Policies │ │             │
	└─────────────┘ └───────────┘ └─────────────┘

# Core Types

Request is one immutable trace access. Statistics is the per-configuration
counter set owned by the driver. TraceReader is the iterator contract trace
parsers implement; the kernel and the MRC estimator consume it and nothing
else.
*/
package types
