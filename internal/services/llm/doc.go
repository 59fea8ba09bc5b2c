// Package llm wraps the chat completion API used for parsing, copywriting,
// and storyboard generation.
package llm
