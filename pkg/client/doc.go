/*
Package client is a Go client library for talking to a zakuro broker or
worker over plain HTTP.

# Architecture

	┌──────────────────── APPLICATION CODE ──────────────────────┐
	│                                                              │
	│  import "github.com/cuemby/zakuro/pkg/client"                │
	│                                                              │
	│  c, err := client.New("zc://broker:9000", client.WithAPIKey(k))│
	│  result, err := c.Execute(payload, reqs)                    │
	│                                                              │
	└──────────────────┬───────────────────────────────────────┘
	                   │
	┌──────────────────▼──── pkg/client ─────────────────────────┐
	│  - zc:// / zakuro:// / broker:// / http:// URI resolution    │
	│  - Authorization: Bearer or X-Zakuro-User header selection   │
	│  - Requirements marshaling, cost header extraction           │
	└─────────────────────┬────────────────────────────────────┘
	                      │ HTTP
	                      ▼
	              Broker or Worker HTTP server

# Usage

	c, err := client.New("zc://broker.internal:9000", client.WithAPIKey("zk_alice_abc123"))
	if err != nil {
		log.Fatal(err)
	}

	result, err := c.Execute(payload, types.DefaultRequirements())
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("cost: %.6f credits, %.6f credits remaining\n", result.CostCredits, result.CreditsRemaining)

There is no certificate handling and no connection pooling beyond what
net/http already does: a Client wraps a single *http.Client and is safe
for concurrent use.
*/
package client
