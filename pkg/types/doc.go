/*
Package types defines the core data structures shared across the zakuro
mesh: worker records, user/ledger records, per-request requirements, and
instance affinity entries. Other packages (registry, selector, ledger,
affinity, broker, worker) operate on these types without redefining them.

Fixed-point balances: user balances and ledger deltas are stored as
int64 micros (CreditsToMicros / MicrosToCredits) rather than floats, so
that repeated reserve/settle/refund cycles never accumulate rounding
error in a user's balance.
*/
package types
