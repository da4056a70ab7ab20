// Package job implements the durable background job queue: typed job
// records, a per-type retryable processing loop, and the manager façade that
// routes work to named queues.
package job
