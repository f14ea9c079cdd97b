// Package backplane provides a shared-memory and coordination layer for
// multi-agent systems.
//
// Backplane gives a fleet of otherwise-independent coding/ops agents a
// common substrate: a pub/sub event bus, a log collector that detects
// noteworthy events, a materialized whiteboard of project state, an SSE
// stream for watching it live, an embedding gateway, per-agent session
// memory with semantic search, cross-session pattern learning, an agent
// registry, a shared context board, an explicit handoff state machine, a
// validation council risk gate, a conductor decision log, an audit log,
// an LLM-assisted plan promoter, and an auto-archive loop that keeps the
// whiteboard from growing unbounded.
//
// # Quick Start
//
// Install the backplane server:
//
//	go install github.com/kadirpekel/backplane/cmd/backplane@latest
//
// Start it against a Postgres database and a Redis bus:
//
//	backplane serve --config backplane.yaml
//
// # Using as a Go Library
//
// Import specific packages directly:
//
//	import (
//	    "github.com/kadirpekel/backplane/internal/bus"
//	    "github.com/kadirpekel/backplane/internal/memory"
//	    "github.com/kadirpekel/backplane/internal/whiteboard"
//	)
//
// # Architecture
//
// Agents publish events onto the bus; the log collector and event
// detector turn raw tool output into structured events; the whiteboard
// materializes the current state of every tracked entity from the event
// stream; and every other module (memory, patterns, handoffs, council,
// audit) reads and writes through the same SQL-backed store so that
// no agent's view of the world can silently diverge from another's.
//
//	Agent → Bus → Collector/Detector → Whiteboard ⇄ SSE clients
//	                                  ⇄ Memory / Patterns / Council / Audit
//
// # Status
//
// Backplane is under active development; APIs may change between minor
// versions.
package backplane
