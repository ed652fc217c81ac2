// Package vizflow is a processor network engine: a dataflow graph of
// processors joined by typed port connections and property links, evaluated
// in topological order whenever something upstream becomes invalid.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│          cmd/vizflow                │  Flags, config, wiring
//	│  (load, evaluate, save, serve)      │  Signal handling
//	└─────────────────────────────────────┘
//	           ↓ drives
//	┌─────────────────────────────────────┐
//	│   evaluator        workspace        │  Evaluation passes,
//	│   eventstream                       │  persistence, events
//	└─────────────────────────────────────┘
//	           ↓ operate on
//	┌─────────────────────────────────────┐
//	│   network                           │  Processors, connections,
//	│   (registry, processor, port,       │  links, invalidation,
//	│    property, observer)              │  batching, observers
//	└─────────────────────────────────────┘
//	           ↓ infrastructure
//	┌─────────────────────────────────────┐
//	│   natsclient  metric  health        │  NATS KV and pub/sub,
//	│   config  errors  pkg/worker        │  Prometheus, health
//	└─────────────────────────────────────┘
//
// # Packages
//
// Core model:
//   - types: invalidation levels and positions
//   - observer: weak-by-subscription observer lists
//   - property: typed properties, composites and property collections
//   - port: inports and outports with type compatibility rules
//   - processor: the Processor interface and Base embedding
//   - registry: processor and property factories keyed by class identifier
//   - network: the graph itself, with batching and change events
//   - processors: built-in processor classes
//
// Runtime:
//   - evaluator: topological evaluation passes on a single goroutine
//   - workspace: JSON/YAML documents, copy/paste and the NATS KV store
//   - eventstream: forwards network events to NATS and WebSocket clients
//
// Infrastructure:
//   - config: layered JSON/YAML configuration with environment overrides
//   - errors: classified errors (transient, invalid, fatal)
//   - metric: Prometheus registry and HTTP server
//   - health: per-processor health reporting
//   - natsclient: NATS connection management and key-value helpers
//   - pkg/worker: bounded worker pool for asynchronous processors
//   - pkg/retry: retry with backoff
//
// # Running
//
//	./bin/vizflow --workspace=scene.yaml --passes=3 --save=scene.out.yaml
//	./bin/vizflow --config=vizflow.yaml --workspace-id=<id> --serve
//
// # Testing
//
// Unit tests run with go test -short. Tests that need a NATS server start
// one with testcontainers and are skipped in short mode.
package vizflow
