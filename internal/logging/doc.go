// Package logging builds the process-wide slog logger and the helpers the
// pipeline uses to keep structured fields consistent.
//
// Two output formats are supported: "console" (compact single-line output,
// colorized when attached to a terminal) and "json" (machine-readable, UTC
// RFC3339 timestamps). Output can fan out to stdout and a log file at the
// same time.
//
// Stage code should not construct loggers directly; it receives one from the
// engine, already enriched with run_id/stage/correlation_id attributes via
// WithContext.
package logging
