// Package notify delivers job lifecycle notifications to connected clients
// over WebSocket. Publishing is fire-and-forget: a notification that cannot
// be delivered is dropped, never retried, and never affects the job that
// produced it.
package notify
