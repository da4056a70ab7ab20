// Package postgres provides PostgreSQL-backed implementations of the storage
// interfaces defined in internal/store and internal/job. It handles query
// execution, row mapping between domain entities and database records, and
// translation of driver errors into store errors.
package postgres
