package oss

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"storyreel/internal/services"
)

const defaultHTTPTimeout = 300 * time.Second

// Config captures the object storage credentials and target bucket.
type Config struct {
	Endpoint        string
	Bucket          string
	AccessKeyID     string
	AccessKeySecret string
	TimeoutSeconds  int
}

// Client uploads artifacts to an OSS bucket with v1 header signing.
type Client struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time
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

// WithClock overrides the signing clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient constructs an upload client from the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			Endpoint:        strings.TrimSpace(cfg.Endpoint),
			Bucket:          strings.TrimSpace(cfg.Bucket),
			AccessKeyID:     strings.TrimSpace(cfg.AccessKeyID),
			AccessKeySecret: strings.TrimSpace(cfg.AccessKeySecret),
			TimeoutSeconds:  cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Upload stores localPath under objectKey and returns the object URL along
// with the service request id.
func (c *Client) Upload(ctx context.Context, localPath, objectKey string) (string, string, error) {
	objectKey = strings.TrimLeft(strings.TrimSpace(objectKey), "/")
	if objectKey == "" {
		return "", "", services.Wrap(services.ErrValidation, "upload", "put object", "object key required", nil)
	}
	if c.cfg.Bucket == "" || c.cfg.Endpoint == "" {
		return "", "", services.Wrap(services.ErrConfiguration, "upload", "put object", "bucket and endpoint required", nil)
	}
	if c.cfg.AccessKeyID == "" || c.cfg.AccessKeySecret == "" {
		return "", "", services.Wrap(services.ErrConfiguration, "upload", "put object", "access credentials required", nil)
	}

	file, err := os.Open(localPath)
	if err != nil {
		return "", "", services.Wrap(services.ErrValidation, "upload", "put object", "open artifact", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return "", "", fmt.Errorf("upload: stat artifact: %w", err)
	}

	contentType := contentTypeFor(localPath)
	date := c.now().UTC().Format(http.TimeFormat)
	objectURL := c.objectURL(objectKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, objectURL, file)
	if err != nil {
		return "", "", fmt.Errorf("upload: new request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Date", date)
	req.Header.Set("Authorization", c.authorization(http.MethodPut, contentType, date, objectKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", services.Wrap(services.ErrTransient, "upload", "put object", "http error", err)
	}
	defer resp.Body.Close()

	requestID := resp.Header.Get("X-Oss-Request-Id")
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return "", requestID, services.WrapHTTPStatus("upload put object", resp.StatusCode, body)
	}
	return objectURL, requestID, nil
}

// objectURL uses virtual-host addressing for bare endpoints. An endpoint
// carrying a scheme is treated as a base URL with path-style addressing,
// which keeps local test servers reachable.
func (c *Client) objectURL(objectKey string) string {
	if strings.Contains(c.cfg.Endpoint, "://") {
		return strings.TrimRight(c.cfg.Endpoint, "/") + "/" + c.cfg.Bucket + "/" + objectKey
	}
	return "https://" + c.cfg.Bucket + "." + c.cfg.Endpoint + "/" + objectKey
}

func (c *Client) authorization(verb, contentType, date, objectKey string) string {
	resource := "/" + c.cfg.Bucket + "/" + objectKey
	stringToSign := strings.Join([]string{verb, "", contentType, date, resource}, "\n")
	mac := hmac.New(sha1.New, []byte(c.cfg.AccessKeySecret))
	mac.Write([]byte(stringToSign))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return "OSS " + c.cfg.AccessKeyID + ":" + signature
}

func contentTypeFor(path string) string {
	if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
