package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"recap/internal/config"
	langpkg "recap/internal/language"
)

// WhisperX invocation constants.
const (
	DefaultModel   = "large-v3-turbo"
	CUDAIndexURL   = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL   = "https://pypi.org/simple"
	BatchSize      = "4"
	OutputFormat   = "all"
	VADMethod      = "silero"
	CPUDevice      = "cpu"
	CUDADevice     = "cuda"
	CPUComputeType = "float32"
)

// CommandRunner executes the transcription binary. Tests substitute this to
// avoid shelling out.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Service runs WhisperX locally through uvx.
type Service struct {
	binary      string
	model       string
	cudaEnabled bool
	timeout     time.Duration
	runner      CommandRunner
}

// NewService creates a local transcription service from configuration.
func NewService(cfg config.Transcribe) *Service {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Service{
		binary:      cfg.Binary,
		model:       model,
		cudaEnabled: cfg.CUDAEnabled,
		timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner CommandRunner) {
	s.runner = runner
}

// Binary returns the configured launcher binary for health checks.
func (s *Service) Binary() string {
	return s.binary
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	return s.model
}

// Word represents a single word with timing from WhisperX output.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Words []Word  `json:"words,omitempty"`
}

// Result contains the output of a transcription run.
type Result struct {
	Text     string
	Language string
	Segments []Segment
	JSONPath string
}

type whisperXPayload struct {
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// Transcribe runs WhisperX on a WAV file and loads the resulting transcript.
// outputDir receives the model's output files; it defaults to the audio
// file's directory.
func (s *Service) Transcribe(ctx context.Context, audioPath, outputDir, language string) (Result, error) {
	var result Result

	if audioPath == "" {
		return result, fmt.Errorf("whisper: audio path required")
	}
	if outputDir == "" {
		outputDir = filepath.Dir(audioPath)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return result, fmt.Errorf("whisper: ensure output dir: %w", err)
	}

	args := s.buildArgs(audioPath, outputDir, language)
	if err := s.run(ctx, s.binary, args...); err != nil {
		return result, fmt.Errorf("whisper: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	result.JSONPath = filepath.Join(outputDir, stem+".json")

	payload, err := loadPayload(result.JSONPath)
	if err != nil {
		return result, fmt.Errorf("whisper: load transcript: %w", err)
	}
	result.Language = payload.Language
	result.Segments = payload.Segments
	result.Text = joinSegments(payload.Segments)
	return result, nil
}

func (s *Service) buildArgs(audioPath, outputDir, language string) []string {
	args := make([]string, 0, 24)

	if s.cudaEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		audioPath,
		"--model", s.model,
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--vad_method", VADMethod,
	)

	if lang := langpkg.ToISO2(language); lang != "" {
		args = append(args, "--language", lang)
	}

	if s.cudaEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}

	return args
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if s.runner != nil {
		return s.runner(ctx, name, args...)
	}

	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func loadPayload(jsonPath string) (whisperXPayload, error) {
	var payload whisperXPayload
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return payload, err
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload, nil
}

func joinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
