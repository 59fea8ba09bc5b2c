package videogen

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
	defaultHTTPTimeout  = 60 * time.Second
	defaultPollInterval = 5 * time.Second
	defaultPollTimeout  = 15 * time.Minute

	defaultBaseURL = "https://dashscope.aliyuncs.com/api/v1"

	videoSynthesisPath = "/services/aigc/video-generation/video-synthesis"
	imageSynthesisPath = "/services/aigc/image2image/image-synthesis"
	taskPath           = "/tasks/"
)

// Config captures the runtime settings for the video generation APIs.
type Config struct {
	APIKey            string
	BaseURL           string
	TextToVideoModel  string
	ImageToVideoModel string
	ImageEditModel    string
	Size              string
	Resolution        string
	PollInterval      time.Duration
	PollTimeout       time.Duration
	TimeoutSeconds    int
}

// Client drives the asynchronous task API: submit, poll until terminal, then
// download the artifact. Each exported call is one attempt end to end;
// callers own retry and rate limiting.
type Client struct {
	cfg        Config
	httpClient *http.Client
	sleep      func(context.Context, time.Duration) error
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

// WithSleeper overrides how poll waits are performed, used by tests.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// NewClient constructs a video generation client from the supplied
// configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		sleep:      sleepContext,
	}
	client.cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	client.cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
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
		Prompt   string `json:"prompt,omitempty"`
		ImageURL string `json:"img_url,omitempty"`
	} `json:"input"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

type taskEnvelope struct {
	Output struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"`
		VideoURL   string `json:"video_url"`
		Results    []struct {
			URL string `json:"url"`
		} `json:"results"`
		Message string `json:"message"`
	} `json:"output"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// TextToVideo synthesizes a clip from a prompt alone and stores it at
// outPath.
func (c *Client) TextToVideo(ctx context.Context, prompt, outPath string) error {
	payload, err := c.buildRequest(c.cfg.TextToVideoModel, prompt, "")
	if err != nil {
		return err
	}
	payload.Parameters = map[string]string{"size": c.cfg.Size}
	return c.runVideoTask(ctx, videoSynthesisPath, payload, outPath)
}

// ImageToVideo synthesizes a clip anchored on a reference image and stores
// it at outPath.
func (c *Client) ImageToVideo(ctx context.Context, prompt, imageURL, outPath string) error {
	if strings.TrimSpace(imageURL) == "" {
		return services.Wrap(services.ErrValidation, "", "video task", "image url required", nil)
	}
	payload, err := c.buildRequest(c.cfg.ImageToVideoModel, prompt, imageURL)
	if err != nil {
		return err
	}
	payload.Parameters = map[string]string{"resolution": c.cfg.Resolution}
	return c.runVideoTask(ctx, videoSynthesisPath, payload, outPath)
}

// EditImage rewrites a reference image according to the prompt and returns
// the URL of the edited image.
func (c *Client) EditImage(ctx context.Context, prompt, imageURL string) (string, error) {
	if strings.TrimSpace(imageURL) == "" {
		return "", services.Wrap(services.ErrValidation, "", "image edit", "image url required", nil)
	}
	payload, err := c.buildRequest(c.cfg.ImageEditModel, prompt, imageURL)
	if err != nil {
		return "", err
	}
	task, err := c.submit(ctx, imageSynthesisPath, payload)
	if err != nil {
		return "", err
	}
	final, err := c.poll(ctx, task)
	if err != nil {
		return "", err
	}
	if len(final.Output.Results) == 0 || strings.TrimSpace(final.Output.Results[0].URL) == "" {
		return "", services.Wrap(services.ErrFatalRemote, "", "image edit", "task succeeded without image url", nil)
	}
	return final.Output.Results[0].URL, nil
}

func (c *Client) buildRequest(model, prompt, imageURL string) (synthesisRequest, error) {
	var payload synthesisRequest
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return payload, services.Wrap(services.ErrValidation, "", "video task", "prompt required", nil)
	}
	if c.cfg.APIKey == "" {
		return payload, services.Wrap(services.ErrConfiguration, "", "video task", "api key required", nil)
	}
	if strings.TrimSpace(model) == "" {
		return payload, services.Wrap(services.ErrConfiguration, "", "video task", "model not configured", nil)
	}
	payload.Model = model
	payload.Input.Prompt = prompt
	payload.Input.ImageURL = strings.TrimSpace(imageURL)
	return payload, nil
}

func (c *Client) runVideoTask(ctx context.Context, path string, payload synthesisRequest, outPath string) error {
	task, err := c.submit(ctx, path, payload)
	if err != nil {
		return err
	}
	final, err := c.poll(ctx, task)
	if err != nil {
		return err
	}
	videoURL := strings.TrimSpace(final.Output.VideoURL)
	if videoURL == "" && len(final.Output.Results) > 0 {
		videoURL = strings.TrimSpace(final.Output.Results[0].URL)
	}
	if videoURL == "" {
		return services.Wrap(services.ErrFatalRemote, "", "video task", "task succeeded without video url", nil)
	}
	return c.download(ctx, videoURL, outPath)
}

func (c *Client) submit(ctx context.Context, path string, payload synthesisRequest) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("video task: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("video task: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-DashScope-Async", "enable")

	envelope, err := c.doTaskRequest(req, "video task submit")
	if err != nil {
		return "", err
	}
	if envelope.Output.TaskID == "" {
		return "", services.Wrap(services.ErrFatalRemote, "", "video task submit", "response carried no task id", nil)
	}
	return envelope.Output.TaskID, nil
}

func (c *Client) poll(ctx context.Context, taskID string) (taskEnvelope, error) {
	deadline := time.Now().Add(c.cfg.PollTimeout)
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+taskPath+taskID, nil)
		if err != nil {
			return taskEnvelope{}, fmt.Errorf("video task poll: new request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

		envelope, err := c.doTaskRequest(req, "video task poll")
		if err != nil {
			return taskEnvelope{}, err
		}

		switch strings.ToUpper(envelope.Output.TaskStatus) {
		case "SUCCEEDED":
			return envelope, nil
		case "FAILED", "CANCELED":
			message := strings.TrimSpace(envelope.Output.Message)
			if message == "" {
				message = strings.TrimSpace(envelope.Message)
			}
			return taskEnvelope{}, services.Wrap(services.ErrFatalRemote, "", "video task",
				"task "+strings.ToLower(envelope.Output.TaskStatus)+": "+message, nil)
		}

		if time.Now().After(deadline) {
			return taskEnvelope{}, services.Wrap(services.ErrTransient, "", "video task",
				fmt.Sprintf("task %s still pending after %s", taskID, c.cfg.PollTimeout), nil)
		}
		if err := c.sleep(ctx, c.cfg.PollInterval); err != nil {
			return taskEnvelope{}, err
		}
	}
}

func (c *Client) doTaskRequest(req *http.Request, op string) (taskEnvelope, error) {
	var envelope taskEnvelope
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return envelope, services.Wrap(services.ErrTransient, "", op, "http error", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope, services.Wrap(services.ErrTransient, "", op, "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return envelope, services.WrapHTTPStatus(op, resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return envelope, services.Wrap(services.ErrFatalRemote, "", op, "decode response", err)
	}
	if envelope.Code != "" {
		return envelope, services.Wrap(services.ErrFatalRemote, "", op,
			fmt.Sprintf("api error %s: %s", envelope.Code, envelope.Message), nil)
	}
	return envelope, nil
}

func (c *Client) download(ctx context.Context, url, outPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("video download: new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "", "video download", "http error", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return services.WrapHTTPStatus("video download", resp.StatusCode, body)
	}

	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("video download: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("video download: %w", err)
	}
	return out.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
