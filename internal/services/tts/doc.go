// Package tts wraps the speech synthesis API that renders narration audio.
package tts
