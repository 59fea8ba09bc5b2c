// Package retry classifies remote failures as transient or fatal and
// computes jittered exponential backoff delays. Runner combines a policy
// with a rate limiter so every external call a stage makes goes through the
// same admission/retry path.
package retry
