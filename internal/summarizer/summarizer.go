package summarizer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"recap/internal/config"
	langpkg "recap/internal/language"
	"recap/internal/logging"
	"recap/internal/queue"
	"recap/internal/services"
	"recap/internal/services/llm"
	"recap/internal/stage"
	"recap/internal/textutil"
)

// fallbackKeywordLimit bounds frequency-derived keywords when the model
// does not return any.
const fallbackKeywordLimit = 8

// Summarizer generates the summary and keywords for a finished transcript.
type Summarizer struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	client *llm.Client
}

// NewSummarizer constructs the summarize stage handler using default dependencies.
func NewSummarizer(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Summarizer {
	return NewSummarizerWithClient(cfg, store, logger, llm.NewClient(cfg.LLM))
}

// NewSummarizerWithClient allows injecting the LLM client (used in tests).
func NewSummarizerWithClient(cfg *config.Config, store *queue.Store, logger *slog.Logger, client *llm.Client) *Summarizer {
	return &Summarizer{
		store:  store,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "summarizer"),
		client: client,
	}
}

func (s *Summarizer) Prepare(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, s.logger)
	job.ProgressMessage = "Preparing summarization"
	job.ErrorMessage = ""
	logger.Info("starting summarization preparation",
		logging.Int("transcript_chars", len(job.Transcript)))
	return nil
}

func (s *Summarizer) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, s.logger)

	transcript := strings.TrimSpace(job.Transcript)
	if transcript == "" {
		return services.Wrap(services.ErrValidation, "summarize", "validate inputs",
			"Job has no transcript to summarize; rerun transcription", nil)
	}

	transcript, truncated, err := llm.TruncateTokens(transcript, s.cfg.LLM.MaxInputTokens)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "summarize", "count tokens",
			"Failed to bound transcript for the model context window", err)
	}
	if truncated {
		logger.Warn("transcript truncated for summarization",
			logging.Int("max_input_tokens", s.cfg.LLM.MaxInputTokens))
	}

	languageName := s.summaryLanguageName(job)

	// Formatting is best effort: a transcript without punctuation still
	// summarizes, so failures only log.
	formatted, err := s.client.Complete(ctx, llm.FormatSystemPrompt(s.transcriptLanguageName(job)), transcript)
	if err != nil {
		logger.Warn("transcript formatting failed", logging.Error(err))
	} else if formatted != "" {
		job.Transcript = formatted
		if persistErr := s.store.Update(ctx, job); persistErr != nil {
			logger.Warn("failed to persist formatted transcript", logging.Error(persistErr))
		}
	}
	job.SetProgress(93, "Transcript formatted")

	start := time.Now()
	summary, err := s.client.Complete(ctx, llm.SummarySystemPrompt(languageName), transcript)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "summarize", "generate summary",
			"LLM summary generation failed", err)
	}
	if strings.TrimSpace(summary) == "" {
		return services.Wrap(services.ErrExternalTool, "summarize", "generate summary",
			"LLM returned an empty summary", nil)
	}
	job.Summary = strings.TrimSpace(summary)
	job.SetProgress(97, "Summary generated")
	logger.Info("summary generated",
		logging.Int("summary_chars", len(job.Summary)),
		logging.Duration("elapsed", time.Since(start)),
	)

	// Keywords are best effort as well.
	if keywords := s.generateKeywords(ctx, job, transcript); len(keywords) > 0 {
		job.SetKeywords(keywords)
	}

	job.SetProgress(queue.ProgressCompleted, "Summarization complete")
	return nil
}

// generateKeywords asks the model for keywords and falls back to a
// frequency ranking of the transcript when the call fails or the payload
// is unusable.
func (s *Summarizer) generateKeywords(ctx context.Context, job *queue.Job, transcript string) []string {
	logger := s.logger
	content, err := s.client.CompleteJSON(ctx, llm.KeywordsSystemPrompt,
		llm.KeywordsUserPrompt(job.Title, transcript))
	if err != nil {
		logger.Warn("keyword generation failed, using frequency fallback", logging.Error(err))
		return textutil.TopKeywords(transcript, fallbackKeywordLimit)
	}
	var parsed struct {
		Keywords []string `json:"keywords"`
	}
	if err := llm.DecodeJSON(content, &parsed); err != nil {
		logger.Warn("keyword payload unparseable, using frequency fallback", logging.Error(err))
		return textutil.TopKeywords(transcript, fallbackKeywordLimit)
	}
	keywords := make([]string, 0, len(parsed.Keywords))
	for _, kw := range parsed.Keywords {
		if trimmed := strings.TrimSpace(kw); trimmed != "" {
			keywords = append(keywords, trimmed)
		}
	}
	if len(keywords) == 0 {
		return textutil.TopKeywords(transcript, fallbackKeywordLimit)
	}
	return keywords
}

// summaryLanguageName resolves the language the summary should be written
// in: the configured override first, then the transcript's own language.
func (s *Summarizer) summaryLanguageName(job *queue.Job) string {
	if configured := strings.TrimSpace(s.cfg.LLM.SummaryLanguage); configured != "" {
		return langpkg.DisplayName(configured)
	}
	return s.transcriptLanguageName(job)
}

func (s *Summarizer) transcriptLanguageName(job *queue.Job) string {
	code := job.DetectedLanguage
	if code == "" {
		code = job.LanguageHint
	}
	if code == "" {
		return "the transcript's language"
	}
	return langpkg.DisplayName(code)
}

func (s *Summarizer) HealthCheck(ctx context.Context) stage.Health {
	if strings.TrimSpace(s.cfg.LLM.APIKey) == "" {
		return stage.Unhealthy("summarize", "llm api key not configured")
	}
	return stage.Healthy("summarize")
}
