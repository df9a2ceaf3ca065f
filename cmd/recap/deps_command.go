package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"recap/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check availability of external tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			statuses := deps.CheckBinaries(deps.ForConfig(cfg))
			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				state := "ok"
				if !status.Available {
					state = "missing"
					if status.Optional {
						state = "missing (optional)"
					}
				}
				detail := status.Description
				if status.Detail != "" {
					detail = status.Detail
				}
				rows = append(rows, []string{status.Name, status.Command, state, detail})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"Tool", "Command", "State", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))

			if !deps.AllRequiredAvailable(statuses) {
				return fmt.Errorf("required tools are missing")
			}
			return nil
		},
	}
}
