// Package service provides the application-level operations: calendar event
// management with outbound provider propagation, provider connection
// lifecycle, and the background job handlers that queues execute.
package service
