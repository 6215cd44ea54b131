/*
Package broker implements the zc HTTP façade: the single entry point
clients and processors talk to over zc:// / broker://. It owns the
worker registry, selector round-robin counter, credit ledger, and
affinity table, and exposes them through a small set of HTTP endpoints
routed with httprouter.

# Request pipeline

POST /execute runs the nine-step pipeline described in the component
design: authenticate, rate-limit, parse requirements, pick a worker
(selector or affinity), reserve a pre-authorized cost, forward the
opaque body, and settle or refund based on the worker's response.

	┌────────────────────── BROKER FAÇADE ────────────────────────┐
	│  Authenticate → RateLimit → SelectOrAffinity → Reserve        │
	│       → Forward → Settle/Refund → RecordAffinity → Respond    │
	└──────┬─────────────┬─────────────┬─────────────┬────────────┘
	       │             │             │             │
	  pkg/registry  pkg/selector  pkg/ledger   pkg/affinity

GET /workers, /credits/:user, /me, /health and POST /credits/:user/add,
/price round out the façade for account and fleet introspection.
*/
package broker
