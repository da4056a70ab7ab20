// Package events decouples the services that want background work done from
// the queue that does it. A service emits a JobRequestEvent; the
// SubmitHandler wired at startup submits the corresponding job, so emitters
// never hold a queue reference.
package events
