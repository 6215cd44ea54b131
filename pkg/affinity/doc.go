/*
Package affinity binds a stateful instance_id to the single worker
endpoint it was created on. call_method requests look the binding up
and bypass the selector; a reaper goroutine (same ticker shape as the
ledger sweeper) evicts entries idle past the configured TTL.
*/
package affinity
