package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"storyreel/internal/engine"
	"storyreel/internal/logging"
	"storyreel/internal/run"
	"storyreel/internal/store"
)

func newRunCommand(cmdCtx *commandContext) *cobra.Command {
	var referenceImage string

	cmd := &cobra.Command{
		Use:   "run <prompt...>",
		Short: "Execute the full pipeline for a prompt and wait for the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputText := strings.TrimSpace(strings.Join(args, " "))
			if inputText == "" {
				return fmt.Errorf("prompt must not be empty")
			}

			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run store: %w", err)
			}
			defer st.Close()

			eng, err := engine.Build(cfg, st, logger)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			state, err := eng.NewRun(ctx, inputText, strings.TrimSpace(referenceImage))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s started\n", state.ID)
			final := eng.Execute(ctx, state)

			switch final.Status {
			case run.StatusCompleted:
				fmt.Fprintf(out, "Run %s completed\n", final.ID)
				if final.Title != "" {
					fmt.Fprintf(out, "Title: %s\n", final.Title)
				}
				if final.UploadURL != "" {
					fmt.Fprintf(out, "Video: %s\n", final.UploadURL)
				}
				return nil
			default:
				if final.ErrorMessage != "" {
					return fmt.Errorf("run %s failed at %s: %s", final.ID, final.FailedStage, final.ErrorMessage)
				}
				return fmt.Errorf("run %s finished with status %s", final.ID, final.Status)
			}
		},
	}

	cmd.Flags().StringVarP(&referenceImage, "image", "i", "", "Reference image URL for the first scene")
	return cmd
}
