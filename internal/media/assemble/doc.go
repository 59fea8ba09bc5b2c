// Package assemble reconciles, muxes, and concatenates scene media with
// ffmpeg.
package assemble
