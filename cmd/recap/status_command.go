package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"recap/internal/api"
	"recap/internal/config"
	"recap/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			if status, err := fetchDaemonStatus(cfg); err == nil {
				printDaemonStatus(cmd, status)
				return nil
			}

			// Daemon unreachable; read queue state directly.
			fmt.Fprintln(cmd.OutOrStdout(), "Daemon: not running")
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				printQueueStats(cmd, stats)
				return nil
			})
		},
	}
}

func fetchDaemonStatus(cfg *config.Config) (*api.DaemonStatus, error) {
	bind := strings.TrimSpace(cfg.API.Bind)
	if bind == "" {
		return nil, fmt.Errorf("api disabled")
	}
	if strings.HasPrefix(bind, ":") {
		bind = "127.0.0.1" + bind
	}

	req, err := http.NewRequest(http.MethodGet, "http://"+bind+"/api/status", nil)
	if err != nil {
		return nil, err
	}
	if token := strings.TrimSpace(cfg.API.Token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon status returned %s", resp.Status)
	}

	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

func printDaemonStatus(cmd *cobra.Command, status *api.DaemonStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Daemon:   running (pid %d)\n", status.PID)
	fmt.Fprintf(out, "Database: %s\n", status.QueueDBPath)
	if status.Workflow.LastError != "" {
		fmt.Fprintf(out, "Last error: %s\n", status.Workflow.LastError)
	}
	if last := status.Workflow.LastJob; last != nil {
		fmt.Fprintf(out, "Last job: %d %s (%s)\n", last.ID, firstNonEmpty(last.Title, last.URL), last.Status)
	}

	if len(status.Workflow.StageHealth) > 0 {
		rows := make([][]string, 0, len(status.Workflow.StageHealth))
		for _, health := range status.Workflow.StageHealth {
			state := "ready"
			if !health.Ready {
				state = "degraded"
			}
			rows = append(rows, []string{health.Name, state, health.Detail})
		}
		fmt.Fprint(out, renderTable(
			[]string{"Stage", "State", "Detail"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft},
		))
	}

	stats := make(map[queue.Status]int, len(status.Workflow.QueueStats))
	for name, count := range status.Workflow.QueueStats {
		if parsed, ok := queue.ParseStatus(name); ok {
			stats[parsed] = count
		}
	}
	printQueueStats(cmd, stats)
}

func printQueueStats(cmd *cobra.Command, stats map[queue.Status]int) {
	rows := make([][]string, 0, len(stats))
	for _, status := range queue.AllStatuses() {
		if count, ok := stats[status]; ok {
			rows = append(rows, []string{string(status), fmt.Sprintf("%d", count)})
		}
	}
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
		return
	}
	fmt.Fprint(cmd.OutOrStdout(), renderTable(
		[]string{"Status", "Count"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	))
}
