package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for values the pipeline cannot run
// without. It returns every problem at once so operators can fix a config in
// one pass.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		problems = append(problems, "paths.work_dir must be set")
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		problems = append(problems, "llm.api_key must be set (or STORYREEL_API_KEY)")
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		problems = append(problems, "llm.model must be set")
	}
	if strings.TrimSpace(c.VideoGen.TextToVideoModel) == "" {
		problems = append(problems, "videogen.text_to_video_model must be set")
	}
	if c.Quality.Enabled && strings.TrimSpace(c.Quality.Model) == "" {
		problems = append(problems, "quality.model must be set when quality.enabled is true")
	}
	if c.RateLimit.CallsPerSecond <= 0 {
		problems = append(problems, "ratelimit.calls_per_second must be positive")
	}
	if c.RateLimit.CallsPerMinute <= 0 {
		problems = append(problems, "ratelimit.calls_per_minute must be positive")
	}
	if c.RateLimit.CallsPerMinute < c.RateLimit.CallsPerSecond {
		problems = append(problems, "ratelimit.calls_per_minute must be >= calls_per_second")
	}
	if c.Retry.MaxAttempts <= 0 {
		problems = append(problems, "retry.max_attempts must be positive")
	}
	if c.Retry.BaseDelaySeconds <= 0 {
		problems = append(problems, "retry.base_delay_seconds must be positive")
	}
	if c.Retry.MaxDelaySeconds < c.Retry.BaseDelaySeconds {
		problems = append(problems, "retry.max_delay_seconds must be >= base_delay_seconds")
	}
	if c.Retry.BackoffFactor < 1 {
		problems = append(problems, "retry.backoff_factor must be >= 1")
	}
	if c.Pipeline.MaxScenes <= 0 {
		problems = append(problems, "pipeline.max_scenes must be positive")
	}
	if c.Pipeline.DialogueMaxRunes <= 0 {
		problems = append(problems, "pipeline.dialogue_max_runes must be positive")
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported", c.Logging.Format))
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}

// ValidateUpload checks the settings the upload stage needs. Kept separate
// from Validate so runs without upload credentials can still be exercised in
// development.
func (c *Config) ValidateUpload() error {
	var problems []string
	if strings.TrimSpace(c.OSS.Bucket) == "" {
		problems = append(problems, "oss.bucket must be set")
	}
	if strings.TrimSpace(c.OSS.Endpoint) == "" {
		problems = append(problems, "oss.endpoint must be set")
	}
	if strings.TrimSpace(c.OSS.AccessKeyID) == "" {
		problems = append(problems, "oss.access_key_id must be set")
	}
	if strings.TrimSpace(c.OSS.AccessKeySecret) == "" {
		problems = append(problems, "oss.access_key_secret must be set")
	}
	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid upload configuration: " + strings.Join(problems, "; "))
}
