// Package store persists pipeline run state in SQLite.
package store
