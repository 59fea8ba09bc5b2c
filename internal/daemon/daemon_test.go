package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"storyreel/internal/engine"
	"storyreel/internal/logging"
	"storyreel/internal/run"
	"storyreel/internal/stage"
	"storyreel/internal/testsupport"
)

type stubHandler struct {
	stage run.Stage
}

func (h *stubHandler) Stage() run.Stage { return h.stage }

func (h *stubHandler) Execute(ctx context.Context, state *run.State) error {
	return nil
}

func stubHandlers() []stage.Handler {
	stages := run.Stages()
	handlers := make([]stage.Handler, 0, len(stages))
	for _, s := range stages {
		handlers = append(handlers, &stubHandler{stage: s})
	}
	return handlers
}

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = "127.0.0.1:0"
	st := testsupport.OpenStore(t, cfg)

	eng, err := engine.New(engine.Options{
		Store:    st,
		Handlers: stubHandlers(),
		Logger:   logging.NewNop(),
		WorkDir:  cfg.Paths.WorkDir,
	})
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}

	d, err := New(cfg, st, eng, logging.NewNop())
	if err != nil {
		t.Fatalf("build daemon: %v", err)
	}
	return d
}

func startTestDaemon(t *testing.T) *Daemon {
	t.Helper()
	d := newTestDaemon(t)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Stop(ctx)
	})
	return d
}

func apiURL(d *Daemon, path string) string {
	return fmt.Sprintf("http://%s%s", d.Status().APIBind, path)
}

func decodeBody(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	d := startTestDaemon(t)

	second, err := New(d.cfg, d.store, d.engine, logging.NewNop())
	if err != nil {
		t.Fatalf("build second daemon: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("expected second daemon start to fail while first holds the lock")
	}
}

func TestDaemonStatusEndpoint(t *testing.T) {
	d := startTestDaemon(t)

	resp, err := http.Get(apiURL(d, "/api/status"))
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status endpoint returned %d", resp.StatusCode)
	}
	var status statusResponse
	decodeBody(t, resp, &status)
	if !status.Running {
		t.Fatal("expected running daemon status")
	}
	if status.RunDB == "" {
		t.Fatal("expected run database path in status")
	}
}

func TestDaemonCreateAndFetchRun(t *testing.T) {
	d := startTestDaemon(t)

	payload := []byte(`{"input_text": "a cat exploring a lighthouse"}`)
	resp, err := http.Post(apiURL(d, "/api/runs"), "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("create returned %d, want %d", resp.StatusCode, http.StatusAccepted)
	}
	var created runView
	decodeBody(t, resp, &created)
	if created.ID == "" {
		t.Fatal("expected run id in create response")
	}
	if created.InputText != "a cat exploring a lighthouse" {
		t.Fatalf("unexpected input text %q", created.InputText)
	}

	d.engine.Wait()

	resp, err = http.Get(apiURL(d, "/api/runs/"+created.ID))
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get run returned %d", resp.StatusCode)
	}
	var fetched runView
	decodeBody(t, resp, &fetched)
	if fetched.Status != run.StatusCompleted {
		t.Fatalf("run status = %s, want %s", fetched.Status, run.StatusCompleted)
	}

	resp, err = http.Get(apiURL(d, "/api/runs"))
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	var listed []runView
	decodeBody(t, resp, &listed)
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Fatalf("unexpected run listing: %+v", listed)
	}
}

func TestDaemonCreateRunRequiresInput(t *testing.T) {
	d := startTestDaemon(t)

	resp, err := http.Post(apiURL(d, "/api/runs"), "application/json", bytes.NewReader([]byte(`{"input_text": "  "}`)))
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank input returned %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestDaemonUnknownRunReturns404(t *testing.T) {
	d := startTestDaemon(t)

	resp, err := http.Get(apiURL(d, "/api/runs/no-such-run"))
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown run returned %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestDaemonStopReleasesLock(t *testing.T) {
	d := newTestDaemon(t)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("stop daemon: %v", err)
	}

	again, err := New(d.cfg, d.store, d.engine, logging.NewNop())
	if err != nil {
		t.Fatalf("build daemon: %v", err)
	}
	if err := again.Start(context.Background()); err != nil {
		t.Fatalf("restart after stop: %v", err)
	}
	if err := again.Stop(ctx); err != nil {
		t.Fatalf("stop restarted daemon: %v", err)
	}
}
