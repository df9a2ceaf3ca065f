package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"recap/internal/config"
	"recap/internal/logging"
	"recap/internal/queue"
	"recap/internal/services"
	"recap/internal/services/ytdlp"
	"recap/internal/stage"
)

// Fetcher downloads the source video and records its metadata.
type Fetcher struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	client *ytdlp.Client
}

// NewFetcher constructs the fetch stage handler using default dependencies.
func NewFetcher(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Fetcher {
	return NewFetcherWithClient(cfg, store, logger, ytdlp.NewClient(cfg.Fetch))
}

// NewFetcherWithClient allows injecting the download client (used in tests).
func NewFetcherWithClient(cfg *config.Config, store *queue.Store, logger *slog.Logger, client *ytdlp.Client) *Fetcher {
	return &Fetcher{
		store:  store,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "fetcher"),
		client: client,
	}
}

func (f *Fetcher) Prepare(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, f.logger)
	job.ProgressMessage = "Preparing download"
	job.ErrorMessage = ""
	logger.Info("starting download preparation", logging.String(logging.FieldURL, job.URL))
	return nil
}

func (f *Fetcher) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, f.logger)
	logger.Info("starting download", logging.String(logging.FieldURL, job.URL))

	if strings.TrimSpace(job.URL) == "" {
		return services.Wrap(services.ErrValidation, "fetch", "validate inputs", "Job has no URL to download", nil)
	}
	if err := os.MkdirAll(f.cfg.Paths.MediaDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "fetch", "ensure media dir", "Failed to create media directory", err)
	}

	// Resumed jobs keep their download when it is still on disk.
	if job.MediaFile != "" && job.MetadataJSON != "" {
		if _, err := os.Stat(job.MediaFile); err == nil {
			job.SetProgress(queue.ProgressFetched, "Download already present")
			logger.Info("reusing existing download", logging.String("media_file", job.MediaFile))
			return nil
		}
	}

	info, err := f.client.Probe(ctx, job.URL)
	if err != nil {
		return f.classify("probe video", err)
	}
	if info.Title != "" {
		job.Title = info.Title
	}
	job.SetProgress(5, "Metadata fetched")
	if err := f.store.Update(ctx, job); err != nil {
		logger.Warn("failed to persist probe metadata", logging.Error(err))
	}

	start := time.Now()
	result, err := f.client.Download(ctx, job.URL, f.cfg.Paths.MediaDir)
	if err != nil {
		return f.classify("download video", err)
	}
	if _, statErr := os.Stat(result.FilePath); statErr != nil {
		return services.Wrap(services.ErrExternalTool, "fetch", "locate download",
			fmt.Sprintf("Download reported success but %s is missing", result.FilePath), statErr)
	}

	job.MediaFile = result.FilePath
	if result.Info.Title != "" {
		job.Title = result.Info.Title
	}
	if job.LanguageHint == "" && result.Info.Language != "" {
		job.LanguageHint = result.Info.Language
	}
	if err := job.SetMetadata(metadataFromInfo(result.Info)); err != nil {
		logger.Warn("failed to encode video metadata", logging.Error(err))
	}

	job.SetProgress(queue.ProgressFetched, "Download complete")
	logger.Info(
		"download completed",
		logging.String("media_file", result.FilePath),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (f *Fetcher) HealthCheck(ctx context.Context) stage.Health {
	return stage.BinaryHealth("fetch", f.client.Binary())
}

// classify maps download error kinds onto queue status semantics: dead
// content parks as unavailable, everything else stays retryable.
func (f *Fetcher) classify(operation string, err error) error {
	var dlErr *ytdlp.DownloadError
	if !errors.As(err, &dlErr) {
		return services.Wrap(services.ErrExternalTool, "fetch", operation, "yt-dlp failed", err)
	}
	switch dlErr.Kind {
	case ytdlp.KindUnavailable:
		return services.Wrap(services.ErrUnavailable, "fetch", operation, dlErr.Message, dlErr.Cause)
	case ytdlp.KindBlocked:
		return services.Wrap(services.ErrExternalTool, "fetch", operation,
			"Download blocked by a login or bot check; refresh cookies or change networks", dlErr.Cause)
	case ytdlp.KindTransient:
		return services.Wrap(services.ErrTransient, "fetch", operation, dlErr.Message, dlErr.Cause)
	default:
		return services.Wrap(services.ErrExternalTool, "fetch", operation, dlErr.Message, dlErr.Cause)
	}
}

func metadataFromInfo(info ytdlp.Info) queue.VideoMetadata {
	return queue.VideoMetadata{
		VideoID:         info.ID,
		Channel:         info.Channel,
		Uploader:        info.Uploader,
		DurationSeconds: info.Duration,
		UploadDate:      info.UploadDate,
		Thumbnail:       info.Thumbnail,
		Description:     info.Description,
		ViewCount:       info.ViewCount,
		LikeCount:       info.LikeCount,
	}
}
