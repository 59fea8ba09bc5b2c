// Package ratelimit implements token-bucket admission control for calls to
// external AI providers. One Limiter guards one capability and is shared by
// every run in the process; construct instances explicitly and inject them
// rather than reaching for globals.
package ratelimit
