package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"recap/internal/config"
	"recap/internal/queue"
)

func writeCLIConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	content := fmt.Sprintf(`[paths]
media_dir = %q
audio_dir = %q
transcript_dir = %q
log_dir = %q

[api]
bind = ""

[llm]
api_key = "test-key"
`,
		filepath.Join(dir, "media"),
		filepath.Join(dir, "audio"),
		filepath.Join(dir, "transcripts"),
		filepath.Join(dir, "logs"),
	)

	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAddAndListCommands(t *testing.T) {
	configPath := writeCLIConfig(t)

	out, err := runCLI(t, "--config", configPath, "add", "https://example.com/watch?v=cli1")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out, "Queued job 1") {
		t.Fatalf("unexpected add output: %q", out)
	}

	_, err = runCLI(t, "--config", configPath, "add", "https://example.com/watch?v=cli1")
	if err == nil || !strings.Contains(err.Error(), "already queued") {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	out, err = runCLI(t, "--config", configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	if !strings.Contains(out, "cli1") || !strings.Contains(out, string(queue.StatusPending)) {
		t.Fatalf("unexpected list output: %q", out)
	}

	out, err = runCLI(t, "--config", configPath, "queue", "list", "--status", "completed")
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if !strings.Contains(out, "Queue is empty") {
		t.Fatalf("expected empty filtered list, got %q", out)
	}

	_, err = runCLI(t, "--config", configPath, "queue", "list", "--status", "bogus")
	if err == nil || !strings.Contains(err.Error(), "unknown status") {
		t.Fatalf("expected status parse error, got %v", err)
	}
}

func TestQueueStatusAndShowCommands(t *testing.T) {
	configPath := writeCLIConfig(t)

	if _, err := runCLI(t, "--config", configPath, "add", "https://example.com/watch?v=cli2"); err != nil {
		t.Fatalf("add: %v", err)
	}

	out, err := runCLI(t, "--config", configPath, "queue", "status")
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	if !strings.Contains(out, string(queue.StatusPending)) {
		t.Fatalf("expected pending count, got %q", out)
	}

	out, err = runCLI(t, "--config", configPath, "queue", "show", "1")
	if err != nil {
		t.Fatalf("queue show: %v", err)
	}
	if !strings.Contains(out, "https://example.com/watch?v=cli2") {
		t.Fatalf("expected job url in output: %q", out)
	}

	_, err = runCLI(t, "--config", configPath, "queue", "show", "99")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestQueueRetryResumeAndClearCommands(t *testing.T) {
	configPath := writeCLIConfig(t)
	ctx := context.Background()

	if _, err := runCLI(t, "--config", configPath, "add", "https://example.com/watch?v=cli3"); err != nil {
		t.Fatalf("add: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	job, err := store.GetByID(ctx, 1)
	if err != nil || job == nil {
		t.Fatalf("get job: %v", err)
	}
	job.SetFailed("download crashed")
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}
	store.Close()

	out, err := runCLI(t, "--config", configPath, "queue", "retry")
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	if !strings.Contains(out, "Requeued 1 job(s)") {
		t.Fatalf("unexpected retry output: %q", out)
	}

	out, err = runCLI(t, "--config", configPath, "queue", "clear")
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	if !strings.Contains(out, "Removed 1 job(s)") {
		t.Fatalf("unexpected clear output: %q", out)
	}
}

func TestQueueHealthCommand(t *testing.T) {
	configPath := writeCLIConfig(t)

	out, err := runCLI(t, "--config", configPath, "queue", "health")
	if err != nil {
		t.Fatalf("queue health: %v", err)
	}
	if !strings.Contains(out, "Integrity check: yes") {
		t.Fatalf("unexpected health output: %q", out)
	}
}

func TestConfigInitAndShowCommands(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "config.toml")

	out, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample config") {
		t.Fatalf("unexpected init output: %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	_, err = runCLI(t, "config", "init", "--path", target)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected overwrite guard, got %v", err)
	}
	if _, err := runCLI(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	configPath := writeCLIConfig(t)
	out, err = runCLI(t, "--config", configPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "api_key = '(set)'") && !strings.Contains(out, `api_key = "(set)"`) {
		t.Fatalf("expected masked api key, got %q", out)
	}
}

func TestStatusCommandFallsBackToStore(t *testing.T) {
	configPath := writeCLIConfig(t)

	if _, err := runCLI(t, "--config", configPath, "add", "https://example.com/watch?v=cli4"); err != nil {
		t.Fatalf("add: %v", err)
	}

	out, err := runCLI(t, "--config", configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Daemon: not running") {
		t.Fatalf("expected fallback notice, got %q", out)
	}
	if !strings.Contains(out, string(queue.StatusPending)) {
		t.Fatalf("expected pending stats, got %q", out)
	}
}
