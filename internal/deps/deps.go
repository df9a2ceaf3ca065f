// Package deps reports availability of the external binaries the pipeline
// shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"recap/internal/config"
)

// Requirement defines an external tool a pipeline stage executes.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// ForConfig lists the external tools the configured pipeline will execute.
// Local transcription tooling becomes optional when a remote runner is
// configured, since the daemon never launches WhisperX in that mode.
func ForConfig(cfg *config.Config) []Requirement {
	remote := cfg.RemoteTranscriptionEnabled()
	return []Requirement{
		{
			Name:        "yt-dlp",
			Command:     cfg.Fetch.Binary,
			Description: "Downloads source videos",
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.Transcode.FFmpegBinary,
			Description: "Extracts audio from downloaded media",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Transcode.FFprobeBinary,
			Description: "Validates media and audio streams",
		},
		{
			Name:        "WhisperX launcher",
			Command:     cfg.Transcribe.Binary,
			Description: "Runs local transcription",
			Optional:    remote,
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// AllRequiredAvailable reports whether every non-optional requirement resolved.
func AllRequiredAvailable(statuses []Status) bool {
	for _, status := range statuses {
		if !status.Optional && !status.Available {
			return false
		}
	}
	return true
}
