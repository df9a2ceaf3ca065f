package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"recap/internal/config"
	"recap/internal/queue"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "add URL",
		Short: "Queue a video URL for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				job, err := store.NewJob(cmd.Context(), args[0], language)
				if err != nil {
					if errors.Is(err, queue.ErrDuplicateURL) {
						return fmt.Errorf("already queued: %w", err)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued job %d: %s\n", job.ID, job.URL)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "Language hint for transcription (e.g. en, de)")
	return cmd
}
