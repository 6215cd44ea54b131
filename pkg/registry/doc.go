/*
Package registry is the broker's view of live workers. Worker records
are added and updated by pkg/discovery; the broker façade only adjusts
in-flight counts and marks a worker unhealthy after a failed forward.
Health follows a simple consecutive-failure state
machine (healthy → unhealthy after 3 failed probes → removed after 20),
latency is tracked with an EWMA, and every read the selector performs
goes through Snapshot, a deep copy taken under a brief read lock so
selection never blocks discovery and never observes a half-updated
worker.
*/
package registry
