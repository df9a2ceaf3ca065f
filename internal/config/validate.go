package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateTranscribe(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.MediaDir) == "" {
		return errors.New("paths.media_dir must be set")
	}
	if strings.TrimSpace(c.Paths.AudioDir) == "" {
		return errors.New("paths.audio_dir must be set")
	}
	if strings.TrimSpace(c.Paths.TranscriptDir) == "" {
		return errors.New("paths.transcript_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if c.Transcode.SampleRate < 8000 {
		return errors.New("transcode.sample_rate must be at least 8000")
	}
	if c.Transcode.Channels != 1 && c.Transcode.Channels != 2 {
		return errors.New("transcode.channels must be 1 or 2")
	}
	return nil
}

func (c *Config) validateTranscribe() error {
	remote := strings.TrimSpace(c.Transcribe.RemoteURL)
	if remote == "" {
		return nil
	}
	parsed, err := url.Parse(remote)
	if err != nil {
		return fmt.Errorf("transcribe.remote_url is not a valid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("transcribe.remote_url must use http or https")
	}
	if parsed.Host == "" {
		return errors.New("transcribe.remote_url must include a host")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/recap/config.toml"
		}
		return fmt.Errorf("llm.api_key is required. Set RECAP_LLM_API_KEY env var or edit %s (create with 'recap config init')", defaultPath)
	}
	if strings.TrimSpace(c.LLM.BaseURL) == "" {
		return errors.New("llm.base_url must be set")
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.HeartbeatInterval >= c.Workflow.HeartbeatTimeout {
		return errors.New("workflow.heartbeat_interval must be less than workflow.heartbeat_timeout")
	}
	return nil
}
