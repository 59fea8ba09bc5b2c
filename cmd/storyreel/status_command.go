package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"storyreel/internal/run"
	"storyreel/internal/store"
)

var stageTitler = cases.Title(language.English)

func stageLabel(stage run.Stage) string {
	if stage == "" {
		return "-"
	}
	return stageTitler.String(string(stage))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func newStatusCommand(cmdCtx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List pipeline runs",
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

			var states []*run.State
			if trimmed := strings.TrimSpace(statusFilter); trimmed != "" {
				states, err = st.ListByStatus(cmd.Context(), run.Status(strings.ToLower(trimmed)))
			} else {
				states, err = st.List(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(states) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}

			headers := []string{"ID", "Status", "Stage", "Title", "Created", "Updated"}
			rows := make([][]string, 0, len(states))
			for _, state := range states {
				stage := state.CurrentStage()
				if state.Status == run.StatusFailed {
					stage = state.FailedStage
				}
				title := state.Title
				if title == "" {
					title = run.TruncateDialogue(state.InputText, 32)
				}
				rows = append(rows, []string{
					shortID(state.ID),
					string(state.Status),
					stageLabel(stage),
					title,
					formatTimestamp(state.CreatedAt),
					formatTimestamp(state.UpdatedAt),
				})
			}
			fmt.Fprintln(out, renderTable(headers, rows, nil))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "filter", "", "Only show runs with this status (pending, processing, completed, failed)")
	return cmd
}
