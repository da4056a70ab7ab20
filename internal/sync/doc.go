// Package sync implements the event-synchronization engine: the domain
// logic executed inside a sync job that reconciles a window of a user's
// provider events into local storage. The provider itself is consumed
// through interfaces; this package never talks HTTP.
package sync
