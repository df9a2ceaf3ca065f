package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"recap/internal/config"
	"recap/internal/logging"
	"recap/internal/queue"
	"recap/internal/services"
	"recap/internal/services/runner"
	"recap/internal/services/whisper"
	"recap/internal/stage"
)

// Transcriber turns extracted audio into a transcript, preferring the remote
// GPU runner and falling back to local WhisperX.
type Transcriber struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	remote *runner.Client
	local  *whisper.Service

	pollInterval  time.Duration
	remoteTimeout time.Duration

	// Decided per job in Prepare. The workflow runs one job at a time, so a
	// struct field is safe here.
	useRemote bool
}

// NewTranscriber constructs the transcribe stage handler using default dependencies.
func NewTranscriber(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Transcriber {
	var remote *runner.Client
	if cfg.RemoteTranscriptionEnabled() {
		remote = runner.NewClient(cfg.Transcribe.RemoteURL)
	}
	return NewTranscriberWithClients(cfg, store, logger, remote, whisper.NewService(cfg.Transcribe))
}

// NewTranscriberWithClients allows injecting the remote and local backends
// (used in tests). remote may be nil to force the local path.
func NewTranscriberWithClients(cfg *config.Config, store *queue.Store, logger *slog.Logger, remote *runner.Client, local *whisper.Service) *Transcriber {
	return &Transcriber{
		store:         store,
		cfg:           cfg,
		logger:        logging.NewComponentLogger(logger, "transcriber"),
		remote:        remote,
		local:         local,
		pollInterval:  time.Duration(cfg.Transcribe.RemotePollInterval) * time.Second,
		remoteTimeout: time.Duration(cfg.Transcribe.RemoteTimeoutSeconds) * time.Second,
	}
}

// WithIntervals overrides the remote poll cadence and ceiling (used in tests).
func (t *Transcriber) WithIntervals(poll, ceiling time.Duration) {
	if poll > 0 {
		t.pollInterval = poll
	}
	if ceiling > 0 {
		t.remoteTimeout = ceiling
	}
}

func (t *Transcriber) Prepare(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, t.logger)
	job.ProgressMessage = "Preparing transcription"
	job.ErrorMessage = ""

	t.useRemote = false
	if t.remote != nil {
		if err := t.remote.Health(ctx); err != nil {
			logger.Warn("remote runner unhealthy; falling back to local transcription", logging.Error(err))
		} else {
			t.useRemote = true
		}
	}
	logger.Info("starting transcription preparation",
		logging.Bool("remote", t.useRemote),
		logging.String("audio_file", job.AudioFile),
	)
	return nil
}

func (t *Transcriber) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, t.logger)

	// Resumed jobs keep their transcript when it is already recorded.
	if job.Transcript != "" {
		job.SetProgress(queue.ProgressTranscribed, "Transcript already present")
		logger.Info("reusing existing transcript")
		return nil
	}

	if err := stage.RequireArtifact(job.AudioFile, "transcribe", "audio file"); err != nil {
		return err
	}
	if err := os.MkdirAll(t.cfg.Paths.TranscriptDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "transcribe", "ensure transcript dir",
			"Failed to create transcript directory", err)
	}

	var result whisper.Result
	var err error
	if t.useRemote {
		result, err = t.executeRemote(ctx, job)
	} else {
		result, err = t.executeLocal(ctx, job)
	}
	if err != nil {
		return err
	}
	if result.Text == "" {
		return services.Wrap(services.ErrExternalTool, "transcribe", "load transcript",
			"Transcription produced no text", nil)
	}

	job.Transcript = result.Text
	job.DetectedLanguage = result.Language
	if path, writeErr := t.writeArtifacts(job, result); writeErr != nil {
		logger.Warn("failed to write transcript artifacts", logging.Error(writeErr))
	} else {
		job.TranscriptFile = path
	}

	job.SetProgress(queue.ProgressTranscribed, "Transcription complete")
	logger.Info("transcription completed",
		logging.String("language", result.Language),
		logging.Int("segments", len(result.Segments)),
	)
	return nil
}

func (t *Transcriber) executeLocal(ctx context.Context, job *queue.Job) (whisper.Result, error) {
	result, err := t.local.Transcribe(ctx, job.AudioFile, t.cfg.Paths.TranscriptDir, job.LanguageHint)
	if err != nil {
		return whisper.Result{}, services.Wrap(services.ErrExternalTool, "transcribe", "run whisperx",
			"Local transcription failed", err)
	}
	return result, nil
}

// executeRemote submits the audio once and polls until the runner finishes or
// the ceiling expires. Expiry is fire-and-forget: the remote job keeps
// running but nothing polls it again.
func (t *Transcriber) executeRemote(ctx context.Context, job *queue.Job) (whisper.Result, error) {
	logger := logging.WithContext(ctx, t.logger)

	if job.RemoteJobID == "" {
		remoteID, err := t.remote.Submit(ctx, job.AudioFile, job.LanguageHint)
		if err != nil {
			return whisper.Result{}, services.Wrap(services.ErrTransient, "transcribe", "submit to runner",
				"Failed to submit audio to remote runner", err)
		}
		job.RemoteJobID = remoteID
		if err := t.store.Update(ctx, job); err != nil {
			logger.Warn("failed to persist remote job id", logging.Error(err))
		}
		logger.Info("submitted to remote runner", logging.String("remote_job_id", remoteID))
	} else {
		logger.Info("resuming remote poll", logging.String("remote_job_id", job.RemoteJobID))
	}

	deadline := time.NewTimer(t.remoteTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return whisper.Result{}, services.Wrap(services.ErrTransient, "transcribe", "remote poll",
				"Transcription interrupted", ctx.Err())
		case <-deadline.C:
			return whisper.Result{}, services.Wrap(services.ErrTimeout, "transcribe", "remote poll",
				"remote transcription timed out", nil)
		case <-ticker.C:
		}

		poll, err := t.remote.Poll(ctx, job.RemoteJobID)
		if err != nil {
			return whisper.Result{}, services.Wrap(services.ErrTransient, "transcribe", "remote poll",
				"Failed to poll remote runner", err)
		}

		switch poll.Status {
		case runner.StatusCompleted:
			return whisper.Result{
				Text:     poll.Text,
				Language: poll.Language,
				Segments: poll.Segments,
			}, nil
		case runner.StatusFailed:
			return whisper.Result{}, services.Wrap(services.ErrExternalTool, "transcribe", "remote transcription",
				fmt.Sprintf("Remote transcription failed: %s", poll.Error), nil)
		default:
			job.SetProgress(remoteProgress(poll.Progress),
				fmt.Sprintf("Transcribing remotely (%s)", poll.Status))
			if err := t.store.Update(ctx, job); err != nil {
				logger.Warn("failed to persist transcription progress", logging.Error(err))
			}
		}
	}
}

// remoteProgress maps the runner's 0..1 estimate into the transcribe band of
// the overall pipeline (50 to 90 percent).
func remoteProgress(p float64) float64 {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return queue.ProgressTranscoded + p*(queue.ProgressTranscribed-queue.ProgressTranscoded)
}

type transcriptArtifact struct {
	Text     string            `json:"text"`
	Language string            `json:"language"`
	Segments []whisper.Segment `json:"segments"`
}

// writeArtifacts stores the transcript as JSON (with segments) and plain
// text next to it. Returns the JSON path.
func (t *Transcriber) writeArtifacts(job *queue.Job, result whisper.Result) (string, error) {
	base := fmt.Sprintf("%d", job.ID)
	if meta := job.Metadata(); meta.VideoID != "" {
		base = meta.VideoID
	}
	jsonPath := filepath.Join(t.cfg.Paths.TranscriptDir, base+".json")
	txtPath := filepath.Join(t.cfg.Paths.TranscriptDir, base+".txt")

	payload, err := json.MarshalIndent(transcriptArtifact{
		Text:     result.Text,
		Language: result.Language,
		Segments: result.Segments,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode transcript: %w", err)
	}
	if err := os.WriteFile(jsonPath, payload, 0o644); err != nil {
		return "", err
	}
	if err := os.WriteFile(txtPath, []byte(result.Text+"\n"), 0o644); err != nil {
		return "", err
	}
	return jsonPath, nil
}

func (t *Transcriber) HealthCheck(ctx context.Context) stage.Health {
	if t.remote != nil {
		if err := t.remote.Health(ctx); err == nil {
			return stage.Healthy("transcribe")
		}
		// Remote down is not fatal while the local fallback works.
		local := stage.BinaryHealth("transcribe", t.local.Binary())
		if local.Ready {
			return stage.Healthy("transcribe")
		}
		return stage.Unhealthy("transcribe", "remote runner unreachable and "+local.Detail)
	}
	return stage.BinaryHealth("transcribe", t.local.Binary())
}
