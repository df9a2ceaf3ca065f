package ytdlp

import "strings"

// Kind classifies a yt-dlp failure so the fetch stage can decide between
// retryable failure and permanent unavailability.
type Kind int

const (
	// KindUnknown covers errors with no recognizable signature. Treated as
	// retryable.
	KindUnknown Kind = iota
	// KindBlocked means the extractor hit a login or bot check. Retryable
	// after operator intervention (cookies, different network).
	KindBlocked
	// KindTransient covers network and rate-limit errors worth retrying.
	KindTransient
	// KindUnavailable means the content is gone for good: removed, private,
	// members-only, or a live stream that has not finished.
	KindUnavailable
	// KindFormatUnavailable means the preferred format selection was too
	// strict. The client retries once with the fallback selector.
	KindFormatUnavailable
)

var blockedNeedles = []string{
	"sign in to confirm you're not a bot",
	"sign in to confirm you’re not a bot",
	"confirm you're not a bot",
	"confirm you’re not a bot",
	"use --cookies-from-browser or --cookies",
	"captcha",
	"verify that you are not a robot",
	"this helps protect our community",
	"cookies are no longer valid",
}

var transientNeedles = []string{
	"timed out",
	"timeout",
	"temporarily unavailable",
	"connection reset",
	"connection aborted",
	"connection refused",
	"network is unreachable",
	"tls",
	"ssl",
	"proxy",
	"http error 429",
	"http error 500",
	"http error 502",
	"http error 503",
	"http error 504",
	"unable to download",
	"failed to establish a new connection",
}

var unavailableNeedles = []string{
	"video unavailable",
	"this video has been removed",
	"this video is no longer available",
	"private video",
	"this video is private",
	"account associated with this video has been terminated",
	"this video is not available",
	"content isn't available",
	"video is age restricted",
}

var memberNeedles = []string{
	"members-only",
	"member-only",
	"join this channel",
	"join the channel",
}

// Classify inspects a yt-dlp error message and buckets it for status mapping.
// Member-only detection mirrors the double check on "member" plus a join
// phrase so ordinary titles containing "member" do not trip it.
func Classify(message string) Kind {
	msg := strings.ToLower(strings.TrimSpace(message))
	if msg == "" {
		return KindUnknown
	}
	if containsAny(msg, blockedNeedles) {
		return KindBlocked
	}
	if strings.Contains(msg, "member") && containsAny(msg, memberNeedles) {
		return KindUnavailable
	}
	if containsAny(msg, unavailableNeedles) {
		return KindUnavailable
	}
	if strings.Contains(msg, "requested format is not available") {
		return KindFormatUnavailable
	}
	if containsAny(msg, transientNeedles) {
		return KindTransient
	}
	return KindUnknown
}

func containsAny(msg string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(msg, n) {
			return true
		}
	}
	return false
}
