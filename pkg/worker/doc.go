/*
Package worker implements a zakuro worker node: an HTTP server that
executes opaque task envelopes from a broker (or a direct caller) on a
fixed-size execution pool.

# Architecture

	┌─────────────────────── WORKER NODE ────────────────────────┐
	│                                                              │
	│  GET  /health   →  {status}                                 │
	│  GET  /info     →  resources, pricing, hardware, tags       │
	│  POST /execute  →  opaque envelope in, opaque envelope out  │
	│  GET  /         →  service banner                           │
	│                                                              │
	│  ┌──────────────────────────────────────────────┐          │
	│  │              Pool (buffered token chan)        │          │
	│  │  size = runtime.NumCPU(), one request per slot │          │
	│  └──────┬───────────────────────────────────────┘          │
	│         │                                                    │
	│  ┌──────▼───────────────┐   ┌─────────────────────────┐    │
	│  │   Registry            │   │   Instances (map+mutex) │    │
	│  │   name → Func/Factory │   │   instance_id → Invoker │    │
	│  └───────────────────────┘   └─────────────────────────┘    │
	└──────────────────────────────────────────────────────────┘

Because the wire format's function/class bodies are opaque bytes
(cloudpickle in the original system, out of scope here), Func and
Class names in an envelope are resolved against a Registry the
embedding process populates at startup, rather than deserialized from
the request itself.
*/
package worker
