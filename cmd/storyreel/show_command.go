package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"storyreel/internal/run"
	"storyreel/internal/store"
)

func newShowCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the full record of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run store: %w", err)
			}
			defer st.Close()

			state, err := resolveRun(cmd.Context(), st, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run:    %s\n", state.ID)
			fmt.Fprintf(out, "Status: %s\n", state.Status)
			fmt.Fprintf(out, "Input:  %s\n", state.InputText)
			if state.ReferenceImage != "" {
				fmt.Fprintf(out, "Image:  %s\n", state.ReferenceImage)
			}
			if state.Topic != "" {
				fmt.Fprintf(out, "Topic:  %s\n", state.Topic)
			}
			if len(state.Keywords) > 0 {
				fmt.Fprintf(out, "Keywords: %s\n", strings.Join(state.Keywords, ", "))
			}
			if state.Title != "" {
				fmt.Fprintf(out, "Title:  %s\n", state.Title)
			}
			if len(state.Storyboard) > 0 {
				fmt.Fprintf(out, "Scenes: %d\n", len(state.Storyboard))
			}

			headers := []string{"Stage", "Status", "Started", "Completed"}
			rows := make([][]string, 0, len(run.Stages()))
			for _, stage := range run.Stages() {
				status := state.StageStatusFor(stage)
				started, completed := "-", "-"
				if status.StartedAt != nil {
					started = formatTimestamp(*status.StartedAt)
				}
				if status.CompletedAt != nil {
					completed = formatTimestamp(*status.CompletedAt)
				}
				rows = append(rows, []string{stageLabel(stage), string(status.Status), started, completed})
			}
			fmt.Fprintln(out, renderTable(headers, rows, nil))

			if state.ErrorMessage != "" {
				fmt.Fprintf(out, "Error:  %s (stage %s)\n", state.ErrorMessage, state.FailedStage)
			}
			if state.UploadURL != "" {
				fmt.Fprintf(out, "Video:  %s\n", state.UploadURL)
			}
			if state.Quality != nil {
				verdict := "acceptable"
				if !state.Quality.Acceptable {
					verdict = "flagged"
				}
				fmt.Fprintf(out, "Review: %s (%s)\n", verdict, state.Quality.Reason)
			}
			return nil
		},
	}
}

// resolveRun accepts a full run id or an unambiguous prefix.
func resolveRun(ctx context.Context, st *store.Store, id string) (*run.State, error) {
	if id == "" {
		return nil, errors.New("run id must not be empty")
	}
	state, err := st.GetByID(ctx, id)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load run: %w", err)
	}

	states, err := st.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	var matches []*run.State
	for _, candidate := range states {
		if strings.HasPrefix(candidate.ID, id) {
			matches = append(matches, candidate)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no run matches %q", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("run id %q is ambiguous (%d matches)", id, len(matches))
	}
}
