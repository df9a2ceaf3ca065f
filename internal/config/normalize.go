package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeFetch()
	c.normalizeTranscode()
	c.normalizeTranscribe()
	c.normalizeLLM()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.MediaDir, err = expandPath(c.Paths.MediaDir); err != nil {
		return fmt.Errorf("paths.media_dir: %w", err)
	}
	if c.Paths.AudioDir, err = expandPath(c.Paths.AudioDir); err != nil {
		return fmt.Errorf("paths.audio_dir: %w", err)
	}
	if c.Paths.TranscriptDir, err = expandPath(c.Paths.TranscriptDir); err != nil {
		return fmt.Errorf("paths.transcript_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("RECAP_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeFetch() {
	c.Fetch.Binary = strings.TrimSpace(c.Fetch.Binary)
	if c.Fetch.Binary == "" {
		c.Fetch.Binary = defaultFetchBinary
	}
	c.Fetch.Format = strings.TrimSpace(c.Fetch.Format)
	if c.Fetch.Format == "" {
		c.Fetch.Format = defaultFetchFormat
	}
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaultFetchUserAgent
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		c.Fetch.TimeoutSeconds = defaultFetchTimeoutSeconds
	}
}

func (c *Config) normalizeTranscode() {
	c.Transcode.FFmpegBinary = strings.TrimSpace(c.Transcode.FFmpegBinary)
	if c.Transcode.FFmpegBinary == "" {
		c.Transcode.FFmpegBinary = defaultFFmpegBinary
	}
	c.Transcode.FFprobeBinary = strings.TrimSpace(c.Transcode.FFprobeBinary)
	if c.Transcode.FFprobeBinary == "" {
		c.Transcode.FFprobeBinary = defaultFFprobeBinary
	}
	if c.Transcode.SampleRate <= 0 {
		c.Transcode.SampleRate = defaultSampleRate
	}
	if c.Transcode.Channels <= 0 {
		c.Transcode.Channels = defaultChannels
	}
	if c.Transcode.TimeoutSeconds <= 0 {
		c.Transcode.TimeoutSeconds = defaultTranscodeTimeoutSeconds
	}
}

func (c *Config) normalizeTranscribe() {
	c.Transcribe.RemoteURL = strings.TrimRight(strings.TrimSpace(c.Transcribe.RemoteURL), "/")
	if c.Transcribe.RemotePollInterval <= 0 {
		c.Transcribe.RemotePollInterval = defaultRemotePollInterval
	}
	if c.Transcribe.RemoteTimeoutSeconds <= 0 {
		c.Transcribe.RemoteTimeoutSeconds = defaultRemoteTimeoutSeconds
	}
	c.Transcribe.Binary = strings.TrimSpace(c.Transcribe.Binary)
	if c.Transcribe.Binary == "" {
		c.Transcribe.Binary = defaultTranscribeBinary
	}
	c.Transcribe.Model = strings.TrimSpace(c.Transcribe.Model)
	if c.Transcribe.Model == "" {
		c.Transcribe.Model = defaultTranscribeModel
	}
	if c.Transcribe.TimeoutSeconds <= 0 {
		c.Transcribe.TimeoutSeconds = defaultTranscribeTimeoutSeconds
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("RECAP_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.MaxInputTokens <= 0 {
		c.LLM.MaxInputTokens = defaultLLMMaxInputTokens
	}
	c.LLM.SummaryLanguage = strings.TrimSpace(c.LLM.SummaryLanguage)
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval < 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		c.Workflow.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if c.Workflow.TranscribeHeartbeatTimeout <= 0 {
		c.Workflow.TranscribeHeartbeatTimeout = defaultTranscribeHeartbeatTimeout
	}
	if c.Workflow.TranscribeHeartbeatTimeout < c.Workflow.HeartbeatTimeout {
		c.Workflow.TranscribeHeartbeatTimeout = c.Workflow.HeartbeatTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
