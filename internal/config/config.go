package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration for pipeline artifacts.
type Paths struct {
	MediaDir      string `toml:"media_dir"`
	AudioDir      string `toml:"audio_dir"`
	TranscriptDir string `toml:"transcript_dir"`
	LogDir        string `toml:"log_dir"`
}

// API contains HTTP API configuration.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Fetch contains configuration for the video download stage.
type Fetch struct {
	Binary         string `toml:"binary"`
	Format         string `toml:"format"`
	UserAgent      string `toml:"user_agent"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Transcode contains configuration for audio extraction.
type Transcode struct {
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	FFprobeBinary  string `toml:"ffprobe_binary"`
	SampleRate     int    `toml:"sample_rate"`
	Channels       int    `toml:"channels"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Transcribe contains configuration for speech recognition. When RemoteURL is
// set the daemon offloads transcription to the remote runner and polls for the
// result; otherwise WhisperX runs locally.
type Transcribe struct {
	RemoteURL            string `toml:"remote_url"`
	RemotePollInterval   int    `toml:"remote_poll_interval"`
	RemoteTimeoutSeconds int    `toml:"remote_timeout_seconds"`
	Binary               string `toml:"binary"`
	Model                string `toml:"model"`
	CUDAEnabled          bool   `toml:"cuda_enabled"`
	TimeoutSeconds       int    `toml:"timeout_seconds"`
}

// LLM contains connection settings for the summarization backend.
type LLM struct {
	APIKey          string `toml:"api_key"`
	BaseURL         string `toml:"base_url"`
	Model           string `toml:"model"`
	Referer         string `toml:"referer"`
	Title           string `toml:"title"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	MaxInputTokens  int    `toml:"max_input_tokens"`
	SummaryLanguage string `toml:"summary_language"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	QueuePollInterval          int `toml:"queue_poll_interval"`
	ErrorRetryInterval         int `toml:"error_retry_interval"`
	HeartbeatInterval          int `toml:"heartbeat_interval"`
	HeartbeatTimeout           int `toml:"heartbeat_timeout"`
	TranscribeHeartbeatTimeout int `toml:"transcribe_heartbeat_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for recap.
//
// Configuration sections by subsystem:
//   - Paths: artifact and log directories
//   - API: HTTP bind address and optional bearer token
//   - Fetch: yt-dlp download settings
//   - Transcode: ffmpeg audio extraction settings
//   - Transcribe: remote runner offload or local WhisperX
//   - LLM: summarization backend connection settings
//   - Workflow: daemon polling intervals and timeouts
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	API        API        `toml:"api"`
	Fetch      Fetch      `toml:"fetch"`
	Transcode  Transcode  `toml:"transcode"`
	Transcribe Transcribe `toml:"transcribe"`
	LLM        LLM        `toml:"llm"`
	Workflow   Workflow   `toml:"workflow"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/recap/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/recap/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("recap.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.MediaDir, c.Paths.AudioDir, c.Paths.TranscriptDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RemoteTranscriptionEnabled reports whether transcription is offloaded to a remote runner.
func (c *Config) RemoteTranscriptionEnabled() bool {
	return strings.TrimSpace(c.Transcribe.RemoteURL) != ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
