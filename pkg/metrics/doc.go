/*
Package metrics defines and registers the mesh's Prometheus series at
package init() and exposes them via Handler() for mounting at /metrics.

Series cover the registry (zakuro_workers_total, in-flight hints), the
selector (zakuro_selector_decisions_total), the ledger
(zakuro_reservations_total, balances/pending reservations), the broker
facade (zakuro_requests_total, request/forward duration), affinity, and
the worker's own execution pool. Collector pushes the registry/ledger
gauges on a ticker rather than computing them inline on every request.
*/
package metrics
