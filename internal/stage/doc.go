// Package stage defines the handler contract pipeline stages implement and
// the shared execution wrapper that applies run state transitions around
// them.
package stage
