// Package engine executes pipeline runs: it owns stage ordering, run
// registration, persistence of every transition, and workspace cleanup.
package engine
