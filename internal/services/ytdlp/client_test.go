package ytdlp_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"recap/internal/config"
	"recap/internal/services/ytdlp"
)

func newTestClient() *ytdlp.Client {
	cfg := config.Default().Fetch
	return ytdlp.NewClient(cfg)
}

func TestDownloadParsesMetadata(t *testing.T) {
	client := newTestClient()
	client.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		payload := `[download] noise line
{"id":"abc123","title":"A Talk","ext":"mp4","duration":632.5,"upload_date":"20240115","channel":"Conf Channel","uploader":"Conf","view_count":1200,"like_count":45}`
		return []byte(payload), nil
	})

	res, err := client.Download(context.Background(), "https://example.com/watch?v=abc123", "/tmp/media")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if res.Info.ID != "abc123" || res.Info.Title != "A Talk" {
		t.Fatalf("unexpected info: %+v", res.Info)
	}
	if res.FilePath != "/tmp/media/abc123.mp4" {
		t.Fatalf("unexpected file path: %s", res.FilePath)
	}
	if res.Info.Duration != 632.5 {
		t.Fatalf("unexpected duration: %v", res.Info.Duration)
	}
}

func TestDownloadRetriesWithFallbackFormat(t *testing.T) {
	client := newTestClient()
	var calls [][]string
	client.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, args)
		if len(calls) == 1 {
			return []byte("ERROR: Requested format is not available"), errors.New("exit status 1")
		}
		return []byte(`{"id":"abc123","title":"A Talk","ext":"webm"}`), nil
	})

	res, err := client.Download(context.Background(), "https://example.com/watch?v=abc123", "/tmp/media")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected fallback retry, got %d calls", len(calls))
	}
	second := strings.Join(calls[1], " ")
	if !strings.Contains(second, "bestvideo+bestaudio/best") {
		t.Fatalf("expected fallback format selector, got %s", second)
	}
	if !strings.Contains(second, "--merge-output-format mkv") {
		t.Fatalf("expected mkv merge on fallback, got %s", second)
	}
	if !strings.HasSuffix(res.FilePath, "abc123.mkv") {
		t.Fatalf("expected mkv path on fallback, got %s", res.FilePath)
	}
}

func TestDownloadClassifiesUnavailable(t *testing.T) {
	client := newTestClient()
	client.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("ERROR: Video unavailable. This video has been removed by the uploader"), errors.New("exit status 1")
	})

	_, err := client.Download(context.Background(), "https://example.com/watch?v=gone", "/tmp/media")
	var dlErr *ytdlp.DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("expected DownloadError, got %v", err)
	}
	if dlErr.Kind != ytdlp.KindUnavailable {
		t.Fatalf("expected unavailable kind, got %v", dlErr.Kind)
	}
}

func TestProbeRejectsLiveStreams(t *testing.T) {
	client := newTestClient()
	client.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte(`{"id":"live1","title":"Live Now","live_status":"is_live"}`), nil
	})

	_, err := client.Probe(context.Background(), "https://example.com/watch?v=live1")
	var dlErr *ytdlp.DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("expected DownloadError, got %v", err)
	}
	if dlErr.Kind != ytdlp.KindUnavailable {
		t.Fatalf("expected unavailable kind for live stream, got %v", dlErr.Kind)
	}
}

func TestProbeReturnsMetadata(t *testing.T) {
	client := newTestClient()
	client.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		joined := strings.Join(args, " ")
		if !strings.Contains(joined, "--skip-download") {
			t.Fatalf("probe must not download: %s", joined)
		}
		return []byte(`{"id":"v1","title":"Ended Stream","live_status":"was_live","uploader":"Someone"}`), nil
	})

	info, err := client.Probe(context.Background(), "https://example.com/watch?v=v1")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if info.Title != "Ended Stream" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.Channel != "Someone" {
		t.Fatalf("expected uploader fallback for channel, got %+v", info)
	}
}
