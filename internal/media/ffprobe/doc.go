// Package ffprobe wraps media inspection via the ffprobe binary.
package ffprobe
