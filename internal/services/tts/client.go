package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"storyreel/internal/services"
)

const (
	defaultHTTPTimeout = 120 * time.Second
	defaultBaseURL     = "https://dashscope.aliyuncs.com/api/v1/services/audio/tts/text2speech"
)

// Config captures the runtime settings for the speech synthesis API.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Voice          string
	TimeoutSeconds int
}

// Client wraps the text-to-speech API. Each call is a single attempt;
// callers own retry and rate limiting.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a speech synthesis client from the supplied
// configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			Voice:          strings.TrimSpace(cfg.Voice),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	return client
}

type synthesisRequest struct {
	Model string `json:"model"`
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Parameters struct {
		Voice  string `json:"voice"`
		Format string `json:"format"`
	} `json:"parameters"`
}

type synthesisResponse struct {
	Output struct {
		AudioURL string `json:"audio_url"`
	} `json:"output"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// Synthesize renders text into an mp3 file at outPath. The voice argument
// overrides the configured default when non-empty.
func (c *Client) Synthesize(ctx context.Context, text, voice, outPath string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return services.Wrap(services.ErrValidation, "", "tts synthesize", "text required", nil)
	}
	if c.cfg.APIKey == "" {
		return services.Wrap(services.ErrConfiguration, "", "tts synthesize", "api key required", nil)
	}
	if strings.TrimSpace(voice) == "" {
		voice = c.cfg.Voice
	}

	var payload synthesisRequest
	payload.Model = c.cfg.Model
	payload.Input.Text = text
	payload.Parameters.Voice = voice
	payload.Parameters.Format = "mp3"

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("tts request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("tts request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "", "tts request", "http error", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return services.WrapHTTPStatus("tts request", resp.StatusCode, body)
	}

	// The API answers with raw audio for synchronous synthesis and with a
	// JSON envelope carrying an audio URL otherwise.
	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "audio/") || strings.HasPrefix(contentType, "application/octet-stream") {
		return writeStream(resp.Body, outPath)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return services.Wrap(services.ErrTransient, "", "tts request", "read body", err)
	}
	var decoded synthesisResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return services.Wrap(services.ErrFatalRemote, "", "tts request", "decode response", err)
	}
	if decoded.Code != "" {
		return services.Wrap(services.ErrFatalRemote, "", "tts request",
			fmt.Sprintf("api error %s: %s", decoded.Code, decoded.Message), nil)
	}
	if decoded.Output.AudioURL == "" {
		return services.Wrap(services.ErrFatalRemote, "", "tts request", "response carried no audio", nil)
	}
	return c.download(ctx, decoded.Output.AudioURL, outPath)
}

func (c *Client) download(ctx context.Context, url, outPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("tts download: new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "", "tts download", "http error", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return services.WrapHTTPStatus("tts download", resp.StatusCode, body)
	}
	return writeStream(resp.Body, outPath)
}

func writeStream(r io.Reader, outPath string) error {
	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("tts write: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("tts write: %w", err)
	}
	return out.Close()
}
