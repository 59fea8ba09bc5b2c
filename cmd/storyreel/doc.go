// Command storyreel is the CLI for the prompt-to-video pipeline: it can run a
// single pipeline end to end, host the daemon with its HTTP API, and inspect
// recorded runs.
package main
