/*
Package selector implements the broker's worker-selection policies
(best_price, best_latency, best_availability, round_robin) as a pure
function over a registry snapshot. It has no knowledge of HTTP,
storage, or the ledger, by design: every strategy and tie-break is
exhaustively testable with plain table-driven tests.
*/
package selector
