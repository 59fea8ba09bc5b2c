// Package vision talks to a multimodal model that can watch a video and
// judge whether it is fit to publish.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storyreel/internal/services"
	"storyreel/internal/services/llm"
)

const (
	defaultHTTPTimeout = 180 * time.Second
	defaultBaseURL     = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	defaultVideoFPS    = 2
)

const reviewSystemPrompt = `You are a strict video quality reviewer for AI-generated short videos. Watch the video and judge whether it is acceptable for publishing. Reject videos with severe visual artifacts, frozen or black frames, garbled on-screen text, or footage that contradicts itself between scenes. Minor imperfections are acceptable. Respond with JSON only, using this schema:
{"quality_acceptable": <true|false>, "reason": "<one short sentence>"}`

const reviewUserPrompt = `Review the attached video and return your verdict as JSON.`

// Report is the verdict returned by the review model.
type Report struct {
	Acceptable bool   `json:"quality_acceptable"`
	Reason     string `json:"reason"`
}

// Config captures the runtime settings for the review model.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	VideoFPS       int
	TimeoutSeconds int
}

// Client wraps an OpenAI-compatible multimodal chat completion API. Each
// call is a single attempt; callers own retry and rate limiting.
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

// NewClient constructs a video review client from the supplied
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
			VideoFPS:       cfg.VideoFPS,
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
	if client.cfg.VideoFPS <= 0 {
		client.cfg.VideoFPS = defaultVideoFPS
	}
	return client
}

type reviewRequest struct {
	Model    string          `json:"model"`
	Messages []reviewMessage `json:"messages"`
}

type reviewMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type videoPart struct {
	Type     string   `json:"type"`
	VideoURL videoRef `json:"video_url"`
	FPS      int      `json:"fps,omitempty"`
}

type videoRef struct {
	URL string `json:"url"`
}

type textPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type reviewResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ReviewVideo asks the model to watch the video at videoURL and returns its
// verdict.
func (c *Client) ReviewVideo(ctx context.Context, videoURL string) (bool, string, error) {
	videoURL = strings.TrimSpace(videoURL)
	if videoURL == "" {
		return false, "", services.Wrap(services.ErrValidation, "", "quality review", "video url required", nil)
	}
	if c.cfg.APIKey == "" {
		return false, "", services.Wrap(services.ErrConfiguration, "", "quality review", "api key required", nil)
	}

	payload := reviewRequest{
		Model: c.cfg.Model,
		Messages: []reviewMessage{
			{Role: "system", Content: reviewSystemPrompt},
			{Role: "user", Content: []any{
				videoPart{Type: "video_url", VideoURL: videoRef{URL: videoURL}, FPS: c.cfg.VideoFPS},
				textPart{Type: "text", Text: reviewUserPrompt},
			}},
		},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return false, "", fmt.Errorf("quality review: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return false, "", fmt.Errorf("quality review: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, "", services.Wrap(services.ErrTransient, "", "quality review", "http error", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, "", services.Wrap(services.ErrTransient, "", "quality review", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return false, "", services.WrapHTTPStatus("quality review", resp.StatusCode, body)
	}

	var completion reviewResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return false, "", services.Wrap(services.ErrFatalRemote, "", "quality review", "decode response", err)
	}
	if completion.Error != nil {
		return false, "", services.Wrap(services.ErrFatalRemote, "", "quality review",
			"api error: "+strings.TrimSpace(completion.Error.Message), nil)
	}

	for _, choice := range completion.Choices {
		content := strings.TrimSpace(choice.Message.Content)
		if content == "" {
			continue
		}
		var report Report
		if err := llm.DecodeLLMJSON(content, &report); err != nil {
			return false, "", services.Wrap(services.ErrFatalRemote, "", "quality review", "decode verdict", err)
		}
		return report.Acceptable, strings.TrimSpace(report.Reason), nil
	}
	return false, "", services.Wrap(services.ErrFatalRemote, "", "quality review", "empty content", nil)
}
