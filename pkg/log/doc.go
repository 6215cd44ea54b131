/*
Package log provides structured logging for the zakuro mesh using
zerolog. Call Init once at process start, then use the package-level
Logger directly or a context logger (WithComponent, WithWorkerID,
WithUserID, WithCorrelationID) to attach queryable fields.
*/
package log
