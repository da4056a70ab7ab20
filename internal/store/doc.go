// Package store defines the persistence interfaces consumed by the rest of
// the application, along with the common error vocabulary shared by all
// store implementations. Concrete implementations live under
// internal/platform.
package store
