package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"storyreel/internal/logging"
	"storyreel/internal/run"
	"storyreel/internal/store"
)

const (
	apiReadHeaderTimeout = 5 * time.Second
	apiReadTimeout       = 15 * time.Second
	apiWriteTimeout      = 30 * time.Second
	apiIdleTimeout       = 60 * time.Second
)

type apiServer struct {
	bind     string
	daemon   *Daemon
	logger   *slog.Logger
	listener net.Listener
	server   *http.Server
}

func newAPIServer(bind string, d *Daemon, logger *slog.Logger) *apiServer {
	return &apiServer{bind: bind, daemon: d, logger: logger}
}

func (a *apiServer) addr() string {
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.bind
}

func (a *apiServer) start() error {
	if a.bind == "" {
		return nil
	}

	listener, err := net.Listen("tcp", a.bind)
	if err != nil {
		return fmt.Errorf("bind api listener on %s: %w", a.bind, err)
	}
	a.listener = listener
	a.server = &http.Server{
		Handler:           a.router(),
		ReadHeaderTimeout: apiReadHeaderTimeout,
		ReadTimeout:       apiReadTimeout,
		WriteTimeout:      apiWriteTimeout,
		IdleTimeout:       apiIdleTimeout,
	}

	go func() {
		if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("api server error", logging.Error(err))
		}
	}()
	a.logger.Info("api listening", logging.String("addr", listener.Addr().String()))
	return nil
}

func (a *apiServer) stop(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown api server: %w", err)
	}
	return nil
}

func (a *apiServer) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/status", a.handleStatus)
	r.Route("/api/runs", func(r chi.Router) {
		r.Post("/", a.handleCreateRun)
		r.Get("/", a.handleListRuns)
		r.Get("/{id}", a.handleGetRun)
	})
	return r
}

type createRunRequest struct {
	InputText      string `json:"input_text"`
	ReferenceImage string `json:"reference_image,omitempty"`
}

type statusResponse struct {
	Running bool   `json:"running"`
	APIBind string `json:"api_bind"`
	RunDB   string `json:"run_db"`
}

// runView is the wire representation of a run snapshot.
type runView struct {
	ID             string                        `json:"id"`
	InputText      string                        `json:"input_text"`
	ReferenceImage string                        `json:"reference_image,omitempty"`
	Topic          string                        `json:"topic,omitempty"`
	Keywords       []string                      `json:"keywords,omitempty"`
	Title          string                        `json:"title,omitempty"`
	Status         run.Status                    `json:"status"`
	CurrentStage   run.Stage                     `json:"current_stage,omitempty"`
	FailedStage    run.Stage                     `json:"failed_stage,omitempty"`
	ErrorMessage   string                        `json:"error_message,omitempty"`
	Stages         map[run.Stage]run.StageStatus `json:"stages"`
	FinalVideo     string                        `json:"final_video,omitempty"`
	UploadURL      string                        `json:"upload_url,omitempty"`
	Quality        *run.QualityReport            `json:"quality,omitempty"`
	CreatedAt      time.Time                     `json:"created_at"`
	UpdatedAt      time.Time                     `json:"updated_at"`
}

func newRunView(state *run.State) runView {
	stages := make(map[run.Stage]run.StageStatus, len(run.Stages()))
	for _, stage := range run.Stages() {
		stages[stage] = state.StageStatusFor(stage)
	}
	return runView{
		ID:             state.ID,
		InputText:      state.InputText,
		ReferenceImage: state.ReferenceImage,
		Topic:          state.Topic,
		Keywords:       state.Keywords,
		Title:          state.Title,
		Status:         state.Status,
		CurrentStage:   state.CurrentStage(),
		FailedStage:    state.FailedStage,
		ErrorMessage:   state.ErrorMessage,
		Stages:         stages,
		FinalVideo:     state.FinalVideo,
		UploadURL:      state.UploadURL,
		Quality:        state.Quality,
		CreatedAt:      state.CreatedAt,
		UpdatedAt:      state.UpdatedAt,
	}
}

func (a *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := a.daemon.Status()
	writeJSON(w, http.StatusOK, statusResponse{
		Running: status.Running,
		APIBind: status.APIBind,
		RunDB:   status.RunDBPath,
	})
}

func (a *apiServer) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.InputText) == "" {
		writeError(w, http.StatusBadRequest, "input_text is required")
		return
	}

	state, err := a.daemon.engine.NewRun(r.Context(), req.InputText, req.ReferenceImage)
	if err != nil {
		a.logger.Error("create run failed", logging.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create run")
		return
	}
	a.daemon.engine.StartRun(a.daemon.ctx, state)
	writeJSON(w, http.StatusAccepted, newRunView(state.Clone()))
}

func (a *apiServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	states, err := a.daemon.store.List(r.Context())
	if err != nil {
		a.logger.Error("list runs failed", logging.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	views := make([]runView, 0, len(states))
	for _, state := range states {
		views = append(views, newRunView(state))
	}
	writeJSON(w, http.StatusOK, views)
}

func (a *apiServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, err := a.daemon.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		a.logger.Error("get run failed", logging.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, newRunView(state))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
