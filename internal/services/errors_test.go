package services_test

import (
	"errors"
	"strings"
	"testing"

	"recap/internal/queue"
	"recap/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "transcode", "extract audio", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"transcode", "extract audio", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestFailureStatusMapping(t *testing.T) {
	unavailableErr := services.Wrap(services.ErrUnavailable, "fetch", "download", "members only", nil)
	if status := services.FailureStatus(unavailableErr); status != queue.StatusUnavailable {
		t.Fatalf("expected unavailable for permanent content error, got %s", status)
	}

	transientErr := services.Wrap(services.ErrTransient, "fetch", "download", "network reset", errors.New("io"))
	if status := services.FailureStatus(transientErr); status != queue.StatusFailed {
		t.Fatalf("expected failed for transient error, got %s", status)
	}

	timeoutErr := services.Wrap(services.ErrTimeout, "transcribe", "remote poll", "remote transcription timed out", nil)
	if status := services.FailureStatus(timeoutErr); status != queue.StatusFailed {
		t.Fatalf("expected failed for timeout, got %s", status)
	}

	if status := services.FailureStatus(nil); status != queue.StatusFailed {
		t.Fatalf("expected failed for nil error, got %s", status)
	}
}

func TestDetailsExtraction(t *testing.T) {
	base := errors.New("connection refused")
	err := services.Wrap(services.ErrTransient, "fetch", "download", "network failure", base)

	details := services.Details(err)
	if details.Kind != services.KindTransient {
		t.Fatalf("expected transient kind, got %s", details.Kind)
	}
	if details.Stage != "fetch" || details.Operation != "download" {
		t.Fatalf("unexpected details: %+v", details)
	}
	if !strings.Contains(details.Message, "network failure") {
		t.Fatalf("expected message to include detail, got %q", details.Message)
	}
	if !errors.Is(details.Cause, base) {
		t.Fatalf("expected cause to be preserved, got %v", details.Cause)
	}

	plain := services.Details(errors.New("plain"))
	if plain.Kind != services.KindUnknown || plain.Message != "plain" {
		t.Fatalf("unexpected plain details: %+v", plain)
	}
}
