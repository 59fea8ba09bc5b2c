// Package daemon runs the pipeline engine as a long-lived process with an
// HTTP API for submitting and inspecting runs. A lock file guards against
// concurrent daemon instances sharing the same state directory.
package daemon
