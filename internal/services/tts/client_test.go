package tts

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"storyreel/internal/services"
)

func TestSynthesizeRawAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload synthesisRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.Input.Text != "hello world" {
			t.Errorf("unexpected text %q", payload.Input.Text)
		}
		if payload.Parameters.Voice != "longhua_v2" {
			t.Errorf("unexpected voice %q", payload.Parameters.Voice)
		}
		if payload.Parameters.Format != "mp3" {
			t.Errorf("unexpected format %q", payload.Parameters.Format)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3 bytes"))
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{
		APIKey:  "key",
		BaseURL: server.URL,
		Model:   "cosyvoice-v2",
		Voice:   "longhua_v2",
	})

	outPath := filepath.Join(t.TempDir(), "0.mp3")
	if err := client.Synthesize(t.Context(), "hello world", "", outPath); err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	audio, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(audio) != "mp3 bytes" {
		t.Errorf("unexpected audio content %q", audio)
	}
}

func TestSynthesizeViaAudioURL(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/audio/result.mp3", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("downloaded audio"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"output":     map[string]any{"audio_url": server.URL + "/audio/result.mp3"},
			"request_id": "req-1",
		})
	})

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Model: "cosyvoice-v2"})
	outPath := filepath.Join(t.TempDir(), "0.mp3")
	if err := client.Synthesize(t.Context(), "hello", "voice-a", outPath); err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	audio, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(audio) != "downloaded audio" {
		t.Errorf("unexpected audio content %q", audio)
	}
}

func TestSynthesizeServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Model: "cosyvoice-v2"})
	err := client.Synthesize(t.Context(), "hello", "", filepath.Join(t.TempDir(), "0.mp3"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !services.Retryable(err) {
		t.Errorf("expected retryable error, got %v", err)
	}
}

func TestSynthesizeAPIErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":    "InvalidParameter",
			"message": "voice does not exist",
		})
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Model: "cosyvoice-v2"})
	err := client.Synthesize(t.Context(), "hello", "", filepath.Join(t.TempDir(), "0.mp3"))
	if err == nil {
		t.Fatal("expected error")
	}
	if services.Retryable(err) {
		t.Errorf("expected fatal error, got %v", err)
	}
}

func TestSynthesizeValidation(t *testing.T) {
	client := NewClient(Config{APIKey: "key", Model: "cosyvoice-v2"})
	if err := client.Synthesize(t.Context(), "  ", "", "out.mp3"); err == nil {
		t.Fatal("expected validation error for empty text")
	}
	noKey := NewClient(Config{Model: "cosyvoice-v2"})
	if err := noKey.Synthesize(t.Context(), "hello", "", "out.mp3"); err == nil {
		t.Fatal("expected configuration error without api key")
	}
}
