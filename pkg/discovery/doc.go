// Package discovery runs the broker's peer discovery loop: a ticker
// that probes every configured peer's /info endpoint in parallel and
// folds successful responses into the worker registry. It is the only
// code that adds or updates worker records; the broker façade only
// adjusts in-flight counts and marks a worker unhealthy after a failed
// forward.
//
// A failed probe doesn't immediately drop a peer: registry.ObserveFailure
// tracks consecutive failures and applies the same unhealthy/removal
// thresholds the registry uses everywhere else, so a single dropped
// probe never flaps a worker's status.
package discovery
