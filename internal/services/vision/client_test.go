package vision

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"storyreel/internal/services"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "qwen-vl-max-latest",
	})
}

func TestReviewVideo(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string          `json:"role"`
				Content json.RawMessage `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.Model != "qwen-vl-max-latest" {
			t.Errorf("unexpected model %q", payload.Model)
		}
		if len(payload.Messages) != 2 || payload.Messages[1].Role != "user" {
			t.Fatalf("unexpected messages %v", payload.Messages)
		}
		var parts []map[string]any
		if err := json.Unmarshal(payload.Messages[1].Content, &parts); err != nil {
			t.Fatalf("user content should be a part list: %v", err)
		}
		if parts[0]["type"] != "video_url" {
			t.Errorf("first part should carry the video, got %v", parts[0])
		}
		ref, _ := parts[0]["video_url"].(map[string]any)
		if ref["url"] != "https://cdn.example/final.mp4" {
			t.Errorf("unexpected video url %v", ref)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"quality_acceptable": true, "reason": "clean footage"}`}},
			},
		})
	})

	acceptable, reason, err := client.ReviewVideo(t.Context(), "https://cdn.example/final.mp4")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if !acceptable || reason != "clean footage" {
		t.Errorf("unexpected verdict %v %q", acceptable, reason)
	}
}

func TestReviewVideoRejection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "```json\n{\"quality_acceptable\": false, \"reason\": \"frozen frames\"}\n```"}},
			},
		})
	})

	acceptable, reason, err := client.ReviewVideo(t.Context(), "https://cdn.example/final.mp4")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if acceptable || reason != "frozen frames" {
		t.Errorf("unexpected verdict %v %q", acceptable, reason)
	}
}

func TestReviewVideoServerErrorIsRetryable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
	})

	_, _, err := client.ReviewVideo(t.Context(), "https://cdn.example/final.mp4")
	if err == nil {
		t.Fatal("expected error")
	}
	if !services.Retryable(err) {
		t.Errorf("expected retryable error, got %v", err)
	}
}

func TestReviewVideoValidation(t *testing.T) {
	client := NewClient(Config{APIKey: "k"})
	if _, _, err := client.ReviewVideo(t.Context(), "  "); err == nil {
		t.Error("expected error for empty url")
	}
	noKey := NewClient(Config{})
	if _, _, err := noKey.ReviewVideo(t.Context(), "https://cdn.example/final.mp4"); err == nil {
		t.Error("expected error for missing api key")
	}
}
