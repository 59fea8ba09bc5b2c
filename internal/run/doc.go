// Package run defines the RunState aggregate, the fixed stage order, and the
// per-run workspace directory tree. One worker owns a State for the duration
// of a run; status transitions progress pending -> processing ->
// completed|failed and never move backwards.
package run
