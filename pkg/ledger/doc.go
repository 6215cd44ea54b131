/*
Package ledger implements reserve/settle/refund credit accounting on
top of pkg/storage. Balances are fixed-point int64 micros; a striped
set of per-user mutexes keeps same-user mutations linearizable while
letting unrelated users proceed concurrently. A background sweeper
auto-refunds reservations that outlive the configured TTL.
*/
package ledger
