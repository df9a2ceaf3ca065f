package config

const (
	defaultMediaDir                   = "~/.local/share/recap/media"
	defaultAudioDir                   = "~/.local/share/recap/audio"
	defaultTranscriptDir              = "~/.local/share/recap/transcripts"
	defaultLogDir                     = "~/.local/share/recap/logs"
	defaultAPIBind                    = "127.0.0.1:7319"
	defaultFetchBinary                = "yt-dlp"
	defaultFetchFormat                = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
	defaultFetchUserAgent             = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"
	defaultFetchTimeoutSeconds        = 1800
	defaultFFmpegBinary               = "ffmpeg"
	defaultFFprobeBinary              = "ffprobe"
	defaultSampleRate                 = 16000
	defaultChannels                   = 1
	defaultTranscodeTimeoutSeconds    = 900
	defaultRemotePollInterval         = 30
	defaultRemoteTimeoutSeconds       = 7200
	defaultTranscribeBinary           = "uvx"
	defaultTranscribeModel            = "large-v3-turbo"
	defaultTranscribeTimeoutSeconds   = 7200
	defaultLLMBaseURL                 = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel                   = "google/gemini-3-flash-preview"
	defaultLLMTimeoutSeconds          = 120
	defaultLLMMaxInputTokens          = 100000
	defaultLogFormat                  = "console"
	defaultLogLevel                   = "info"
	defaultQueuePollInterval          = 5
	defaultErrorRetryInterval         = 10
	defaultHeartbeatInterval          = 15
	defaultHeartbeatTimeout           = 300
	defaultTranscribeHeartbeatTimeout = 7200
)

// Default returns a Config populated with repository defaults.
func Default() *Config {
	return &Config{
		Paths: Paths{
			MediaDir:      defaultMediaDir,
			AudioDir:      defaultAudioDir,
			TranscriptDir: defaultTranscriptDir,
			LogDir:        defaultLogDir,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Fetch: Fetch{
			Binary:         defaultFetchBinary,
			Format:         defaultFetchFormat,
			UserAgent:      defaultFetchUserAgent,
			TimeoutSeconds: defaultFetchTimeoutSeconds,
		},
		Transcode: Transcode{
			FFmpegBinary:   defaultFFmpegBinary,
			FFprobeBinary:  defaultFFprobeBinary,
			SampleRate:     defaultSampleRate,
			Channels:       defaultChannels,
			TimeoutSeconds: defaultTranscodeTimeoutSeconds,
		},
		Transcribe: Transcribe{
			RemotePollInterval:   defaultRemotePollInterval,
			RemoteTimeoutSeconds: defaultRemoteTimeoutSeconds,
			Binary:               defaultTranscribeBinary,
			Model:                defaultTranscribeModel,
			TimeoutSeconds:       defaultTranscribeTimeoutSeconds,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			MaxInputTokens: defaultLLMMaxInputTokens,
		},
		Workflow: Workflow{
			QueuePollInterval:          defaultQueuePollInterval,
			ErrorRetryInterval:         defaultErrorRetryInterval,
			HeartbeatInterval:          defaultHeartbeatInterval,
			HeartbeatTimeout:           defaultHeartbeatTimeout,
			TranscribeHeartbeatTimeout: defaultTranscribeHeartbeatTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
