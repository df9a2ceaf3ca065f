package transcoder

import (
	"context"
	"log/slog"
	"os"
	"time"

	"recap/internal/config"
	"recap/internal/logging"
	"recap/internal/queue"
	"recap/internal/services"
	"recap/internal/services/ffmpeg"
	"recap/internal/stage"
)

// Transcoder extracts a transcription-ready audio track from downloaded media.
type Transcoder struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	client *ffmpeg.Client
}

// NewTranscoder constructs the transcode stage handler using default dependencies.
func NewTranscoder(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Transcoder {
	return NewTranscoderWithClient(cfg, store, logger, ffmpeg.NewClient(cfg.Transcode))
}

// NewTranscoderWithClient allows injecting the ffmpeg client (used in tests).
func NewTranscoderWithClient(cfg *config.Config, store *queue.Store, logger *slog.Logger, client *ffmpeg.Client) *Transcoder {
	return &Transcoder{
		store:  store,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "transcoder"),
		client: client,
	}
}

func (t *Transcoder) Prepare(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, t.logger)
	job.ProgressMessage = "Preparing audio extraction"
	job.ErrorMessage = ""
	logger.Info("starting audio extraction preparation", logging.String("media_file", job.MediaFile))
	return nil
}

func (t *Transcoder) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, t.logger)

	if err := stage.RequireArtifact(job.MediaFile, "transcode", "media file"); err != nil {
		return err
	}

	// Resumed jobs keep their WAV when it is still on disk.
	if job.AudioFile != "" {
		if _, err := os.Stat(job.AudioFile); err == nil {
			job.SetProgress(queue.ProgressTranscoded, "Audio already present")
			logger.Info("reusing existing audio", logging.String("audio_file", job.AudioFile))
			return nil
		}
	}

	start := time.Now()
	audioPath, err := t.client.ExtractAudio(ctx, job.MediaFile, t.cfg.Paths.AudioDir)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "transcode", "extract audio",
			"ffmpeg failed to extract audio", err)
	}
	job.AudioFile = audioPath

	if seconds, err := t.client.Duration(ctx, audioPath); err != nil {
		logger.Warn("audio duration probe failed", logging.Error(err))
	} else {
		meta := job.Metadata()
		if meta.DurationSeconds == 0 {
			meta.DurationSeconds = seconds
			if err := job.SetMetadata(meta); err != nil {
				logger.Warn("failed to record audio duration", logging.Error(err))
			}
		}
	}

	job.SetProgress(queue.ProgressTranscoded, "Audio extracted")
	logger.Info(
		"audio extraction completed",
		logging.String("audio_file", audioPath),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (t *Transcoder) HealthCheck(ctx context.Context) stage.Health {
	return stage.BinaryHealth("transcode", t.client.Binary())
}
