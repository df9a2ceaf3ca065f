// Package summarizer implements the final pipeline stage: formatting the
// transcript, generating the summary, and extracting keywords through the
// configured LLM. Formatting and keywords are best effort; only the summary
// itself can fail the stage.
package summarizer
