package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	WorkDir string `toml:"work_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// LLM contains connection settings for the text-completion provider.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// TTS contains connection settings for the speech-synthesis provider.
type TTS struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	DefaultVoice   string `toml:"default_voice"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// VideoGen contains connection settings for the video-synthesis provider.
type VideoGen struct {
	APIKey              string `toml:"api_key"`
	BaseURL             string `toml:"base_url"`
	TextToVideoModel    string `toml:"text_to_video_model"`
	ImageToVideoModel   string `toml:"image_to_video_model"`
	ImageEditModel      string `toml:"image_edit_model"`
	Size                string `toml:"size"`
	Resolution          string `toml:"resolution"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
}

// Quality contains settings for the advisory review of the published video.
type Quality struct {
	Enabled        bool   `toml:"enabled"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	VideoFPS       int    `toml:"video_fps"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// OSS contains object storage upload settings.
type OSS struct {
	Endpoint        string `toml:"endpoint"`
	Bucket          string `toml:"bucket"`
	AccessKeyID     string `toml:"access_key_id"`
	AccessKeySecret string `toml:"access_key_secret"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// Media contains external media tooling settings.
type Media struct {
	FFmpeg       string `toml:"ffmpeg"`
	FFprobe      string `toml:"ffprobe"`
	AudioBitrate string `toml:"audio_bitrate"`
}

// RateLimit bounds calls to the upstream AI providers.
type RateLimit struct {
	CallsPerSecond        int `toml:"calls_per_second"`
	CallsPerMinute        int `toml:"calls_per_minute"`
	MinIntervalMillis     int `toml:"min_interval_ms"`
	AcquireTimeoutSeconds int `toml:"acquire_timeout_seconds"`
}

// Retry controls backoff behaviour around flaky remote calls.
type Retry struct {
	MaxAttempts      int     `toml:"max_attempts"`
	BaseDelaySeconds float64 `toml:"base_delay_seconds"`
	MaxDelaySeconds  float64 `toml:"max_delay_seconds"`
	BackoffFactor    float64 `toml:"backoff_factor"`
}

// Pipeline controls run-level behaviour.
type Pipeline struct {
	MaxScenes        int  `toml:"max_scenes"`
	DialogueMaxRunes int  `toml:"dialogue_max_runes"`
	KeepWorkDir      bool `toml:"keep_work_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for storyreel.
//
// Configuration sections by subsystem:
//   - Paths: working/log directories and API bind address
//   - LLM: text completion (topic, copywriting, storyboard, voice selection)
//   - TTS: per-scene narration synthesis
//   - VideoGen: text/image-to-video task submission and image editing
//   - Quality: advisory multimodal review of the published video
//   - OSS: final artifact upload
//   - Media: ffmpeg/ffprobe binaries and audio encoding settings
//   - RateLimit / Retry: admission control and backoff for remote calls
//   - Pipeline: scene budget and cleanup behaviour
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	LLM       LLM       `toml:"llm"`
	TTS       TTS       `toml:"tts"`
	VideoGen  VideoGen  `toml:"videogen"`
	Quality   Quality   `toml:"quality"`
	OSS       OSS       `toml:"oss"`
	Media     Media     `toml:"media"`
	RateLimit RateLimit `toml:"ratelimit"`
	Retry     Retry     `toml:"retry"`
	Pipeline  Pipeline  `toml:"pipeline"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the conventional config file location.
func DefaultConfigPath() string {
	return "~/.config/storyreel/config.toml"
}

// Load reads the config file at path, applies defaults for unset values, and
// normalizes paths. A missing file yields defaults without error.
func Load(path string) (*Config, string, error) {
	resolved := ExpandPath(strings.TrimSpace(path))
	if resolved == "" {
		resolved = ExpandPath(DefaultConfigPath())
	}

	cfg := Default()
	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, resolved, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// Defaults apply.
	default:
		return nil, resolved, fmt.Errorf("read config %s: %w", resolved, err)
	}

	cfg.applyEnvOverrides()
	cfg.normalize()
	return &cfg, resolved, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// clobber an existing file.
func WriteSample(path string) (string, error) {
	resolved := ExpandPath(strings.TrimSpace(path))
	if resolved == "" {
		resolved = ExpandPath(DefaultConfigPath())
	}
	if _, err := os.Stat(resolved); err == nil {
		return resolved, fmt.Errorf("config already exists at %s", resolved)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return resolved, fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(sampleConfig), 0o600); err != nil {
		return resolved, fmt.Errorf("write sample config: %w", err)
	}
	return resolved, nil
}

// EnsureDirectories creates the working and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// applyEnvOverrides lets secrets come from the environment so they stay out
// of the config file.
func (c *Config) applyEnvOverrides() {
	if key := strings.TrimSpace(os.Getenv("STORYREEL_API_KEY")); key != "" {
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = key
		}
		if c.TTS.APIKey == "" {
			c.TTS.APIKey = key
		}
		if c.VideoGen.APIKey == "" {
			c.VideoGen.APIKey = key
		}
		if c.Quality.APIKey == "" {
			c.Quality.APIKey = key
		}
	}
	if id := strings.TrimSpace(os.Getenv("STORYREEL_OSS_ACCESS_KEY_ID")); id != "" && c.OSS.AccessKeyID == "" {
		c.OSS.AccessKeyID = id
	}
	if secret := strings.TrimSpace(os.Getenv("STORYREEL_OSS_ACCESS_KEY_SECRET")); secret != "" && c.OSS.AccessKeySecret == "" {
		c.OSS.AccessKeySecret = secret
	}
}

func (c *Config) normalize() {
	c.Paths.WorkDir = ExpandPath(c.Paths.WorkDir)
	c.Paths.LogDir = ExpandPath(c.Paths.LogDir)

	// Shared credentials cascade from the LLM section.
	if c.TTS.APIKey == "" {
		c.TTS.APIKey = c.LLM.APIKey
	}
	if c.VideoGen.APIKey == "" {
		c.VideoGen.APIKey = c.LLM.APIKey
	}
	if c.Quality.APIKey == "" {
		c.Quality.APIKey = c.LLM.APIKey
	}
}

// ExpandPath resolves a leading tilde against the current user's home
// directory.
func ExpandPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return ""
	}
	if trimmed == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return trimmed
	}
	if strings.HasPrefix(trimmed, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, trimmed[2:])
		}
	}
	return filepath.Clean(trimmed)
}
