package ffprobe

import (
	"context"
	"errors"
	"testing"
)

const sampleOutput = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 832, "height": 480, "duration": "12.480000"},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "sample_rate": "44100", "channels": 2, "duration": "12.501000"}
  ],
  "format": {"filename": "0.mp4", "nb_streams": 2, "duration": "12.512000", "size": "1048576", "format_name": "mov,mp4,m4a,3gp,3g2,mj2"}
}`

func TestParseResult(t *testing.T) {
	result, err := parse([]byte(sampleOutput))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(result.Streams) != 2 {
		t.Fatalf("expected 2 streams, got %d", len(result.Streams))
	}
	if result.Streams[0].CodecName != "h264" || result.Streams[0].Width != 832 {
		t.Errorf("unexpected video stream: %+v", result.Streams[0])
	}
	if result.Format.Duration != "12.512000" {
		t.Errorf("unexpected format duration %q", result.Format.Duration)
	}
}

func TestDurationSecondsPrefersFormat(t *testing.T) {
	result, err := parse([]byte(sampleOutput))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := result.DurationSeconds(); got != 12.512 {
		t.Errorf("expected format duration 12.512, got %v", got)
	}
}

func TestDurationSecondsFallsBackToStream(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{Index: 0, Duration: ""},
			{Index: 1, Duration: "7.25"},
		},
		Format: Format{Duration: "N/A"},
	}
	if got := result.DurationSeconds(); got != 7.25 {
		t.Errorf("expected stream duration 7.25, got %v", got)
	}
}

func TestDurationSecondsUnknown(t *testing.T) {
	result := Result{
		Streams: []Stream{{Duration: "bogus"}},
		Format:  Format{Duration: ""},
	}
	if got := result.DurationSeconds(); got != 0 {
		t.Errorf("expected 0 for unknown duration, got %v", got)
	}
}

func TestProbeSwallowsInspectErrors(t *testing.T) {
	probe := NewProbe("ffprobe")
	probe.inspect = func(context.Context, string, string) (Result, error) {
		return Result{}, errors.New("boom")
	}
	if got := probe.Duration(context.Background(), "missing.mp4"); got != 0 {
		t.Errorf("expected 0 on inspect failure, got %v", got)
	}
}

func TestProbeReturnsDuration(t *testing.T) {
	probe := NewProbe("ffprobe")
	probe.inspect = func(_ context.Context, binary, path string) (Result, error) {
		if binary != "ffprobe" || path != "clip.mp4" {
			t.Errorf("unexpected inspect args %q %q", binary, path)
		}
		return Result{Format: Format{Duration: "3.5"}}, nil
	}
	if got := probe.Duration(context.Background(), "clip.mp4"); got != 3.5 {
		t.Errorf("expected 3.5, got %v", got)
	}
}

func TestInspectRejectsEmptyPath(t *testing.T) {
	if _, err := Inspect(context.Background(), "ffprobe", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
