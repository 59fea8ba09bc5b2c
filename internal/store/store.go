package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"storyreel/internal/config"
	"storyreel/internal/run"
)

// ErrNotFound indicates the requested run does not exist.
var ErrNotFound = errors.New("run not found")

// Store manages run persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the run database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "runs.db"))
}

// OpenPath opens the database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// CreateRun inserts a new run record.
func (s *Store) CreateRun(ctx context.Context, state *run.State) error {
	if state == nil {
		return errors.New("nil run state")
	}
	row, err := encodeRow(state)
	if err != nil {
		return err
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO runs (
            id, input_text, reference_image, topic, keywords_json, title,
            copywriting, storyboard_json, audio_files_json, video_segments_json,
            final_video, upload_url, upload_request_id, quality_json,
            stage_statuses_json, status, failed_stage, error_message, root_dir,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.args()...)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// SaveRun updates an existing run record, inserting it when absent. It is
// the persistence hook stage execution calls after every transition.
func (s *Store) SaveRun(ctx context.Context, state *run.State) error {
	if state == nil {
		return errors.New("nil run state")
	}
	row, err := encodeRow(state)
	if err != nil {
		return err
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET
            input_text = ?, reference_image = ?, topic = ?, keywords_json = ?,
            title = ?, copywriting = ?, storyboard_json = ?, audio_files_json = ?,
            video_segments_json = ?, final_video = ?, upload_url = ?,
            upload_request_id = ?, quality_json = ?, stage_statuses_json = ?,
            status = ?, failed_stage = ?, error_message = ?, root_dir = ?,
            created_at = ?, updated_at = ?
        WHERE id = ?`,
		append(row.args()[1:], row.id)...)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return s.CreateRun(ctx, state)
	}
	return nil
}

// GetByID loads one run.
func (s *Store) GetByID(ctx context.Context, id string) (*run.State, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, selectColumns+" FROM runs WHERE id = ?", id)
	state, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return state, err
}

// List returns all runs, newest first.
func (s *Store) List(ctx context.Context) ([]*run.State, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, selectColumns+" FROM runs ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var states []*run.State
	for rows.Next() {
		state, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

// ListByStatus returns runs with the given overall status, newest first.
func (s *Store) ListByStatus(ctx context.Context, status run.Status) ([]*run.State, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, selectColumns+" FROM runs WHERE status = ? ORDER BY created_at DESC, id DESC", string(status))
	if err != nil {
		return nil, fmt.Errorf("list runs by status: %w", err)
	}
	defer rows.Close()

	var states []*run.State
	for rows.Next() {
		state, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

// DeleteRun removes a run record.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

const selectColumns = `SELECT
    id, input_text, reference_image, topic, keywords_json, title,
    copywriting, storyboard_json, audio_files_json, video_segments_json,
    final_video, upload_url, upload_request_id, quality_json,
    stage_statuses_json, status, failed_stage, error_message, root_dir,
    created_at, updated_at`

type runRow struct {
	id              string
	inputText       string
	referenceImage  string
	topic           string
	keywordsJSON    string
	title           string
	copywriting     string
	storyboardJSON  string
	audioJSON       string
	videoJSON       string
	finalVideo      string
	uploadURL       string
	uploadRequestID string
	qualityJSON     string
	stageJSON       string
	status          string
	failedStage     string
	errorMessage    string
	rootDir         string
	createdAt       string
	updatedAt       string
}

func (r runRow) args() []any {
	return []any{
		r.id, r.inputText, r.referenceImage, r.topic, r.keywordsJSON, r.title,
		r.copywriting, r.storyboardJSON, r.audioJSON, r.videoJSON,
		r.finalVideo, r.uploadURL, r.uploadRequestID, r.qualityJSON, r.stageJSON,
		r.status, r.failedStage, r.errorMessage, r.rootDir, r.createdAt, r.updatedAt,
	}
}

func encodeRow(state *run.State) (runRow, error) {
	keywords, err := marshalJSON(state.Keywords, "[]")
	if err != nil {
		return runRow{}, fmt.Errorf("marshal keywords: %w", err)
	}
	storyboard, err := marshalJSON(state.Storyboard, "[]")
	if err != nil {
		return runRow{}, fmt.Errorf("marshal storyboard: %w", err)
	}
	audio, err := marshalJSON(state.AudioFiles, "[]")
	if err != nil {
		return runRow{}, fmt.Errorf("marshal audio files: %w", err)
	}
	video, err := marshalJSON(state.VideoSegments, "[]")
	if err != nil {
		return runRow{}, fmt.Errorf("marshal video segments: %w", err)
	}
	stages, err := marshalJSON(state.StageStatuses, "{}")
	if err != nil {
		return runRow{}, fmt.Errorf("marshal stage statuses: %w", err)
	}
	quality, err := marshalJSON(state.Quality, "")
	if err != nil {
		return runRow{}, fmt.Errorf("marshal quality report: %w", err)
	}
	return runRow{
		id:              state.ID,
		inputText:       state.InputText,
		referenceImage:  state.ReferenceImage,
		topic:           state.Topic,
		keywordsJSON:    keywords,
		title:           state.Title,
		copywriting:     state.Copywriting,
		storyboardJSON:  storyboard,
		audioJSON:       audio,
		videoJSON:       video,
		finalVideo:      state.FinalVideo,
		uploadURL:       state.UploadURL,
		uploadRequestID: state.UploadRequestID,
		qualityJSON:     quality,
		stageJSON:       stages,
		status:          string(state.Status),
		failedStage:     string(state.FailedStage),
		errorMessage:    state.ErrorMessage,
		rootDir:         state.RootDir,
		createdAt:       state.CreatedAt.UTC().Format(time.RFC3339Nano),
		updatedAt:       state.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*run.State, error) {
	var r runRow
	err := row.Scan(
		&r.id, &r.inputText, &r.referenceImage, &r.topic, &r.keywordsJSON, &r.title,
		&r.copywriting, &r.storyboardJSON, &r.audioJSON, &r.videoJSON,
		&r.finalVideo, &r.uploadURL, &r.uploadRequestID, &r.qualityJSON, &r.stageJSON,
		&r.status, &r.failedStage, &r.errorMessage, &r.rootDir, &r.createdAt, &r.updatedAt,
	)
	if err != nil {
		return nil, err
	}

	state := &run.State{
		ID:              r.id,
		InputText:       r.inputText,
		ReferenceImage:  r.referenceImage,
		Topic:           r.topic,
		Title:           r.title,
		Copywriting:     r.copywriting,
		FinalVideo:      r.finalVideo,
		UploadURL:       r.uploadURL,
		UploadRequestID: r.uploadRequestID,
		Status:          run.Status(r.status),
		FailedStage:     run.Stage(r.failedStage),
		ErrorMessage:    r.errorMessage,
		RootDir:         r.rootDir,
	}
	if err := unmarshalJSON(r.keywordsJSON, &state.Keywords); err != nil {
		return nil, fmt.Errorf("unmarshal keywords: %w", err)
	}
	if err := unmarshalJSON(r.storyboardJSON, &state.Storyboard); err != nil {
		return nil, fmt.Errorf("unmarshal storyboard: %w", err)
	}
	if err := unmarshalJSON(r.audioJSON, &state.AudioFiles); err != nil {
		return nil, fmt.Errorf("unmarshal audio files: %w", err)
	}
	if err := unmarshalJSON(r.videoJSON, &state.VideoSegments); err != nil {
		return nil, fmt.Errorf("unmarshal video segments: %w", err)
	}
	if err := unmarshalJSON(r.stageJSON, &state.StageStatuses); err != nil {
		return nil, fmt.Errorf("unmarshal stage statuses: %w", err)
	}
	if err := unmarshalJSON(r.qualityJSON, &state.Quality); err != nil {
		return nil, fmt.Errorf("unmarshal quality report: %w", err)
	}
	if state.CreatedAt, err = parseTimestamp(r.createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if state.UpdatedAt, err = parseTimestamp(r.updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return state, nil
}

func marshalJSON(value any, empty string) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	text := string(data)
	if text == "null" {
		return empty, nil
	}
	return text, nil
}

func unmarshalJSON(text string, target any) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return json.Unmarshal([]byte(text), target)
}

func parseTimestamp(text string) (time.Time, error) {
	if strings.TrimSpace(text) == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, text)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}
