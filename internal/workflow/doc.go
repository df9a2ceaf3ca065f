// Package workflow drives queued jobs through the pipeline stages. A single
// worker goroutine claims the next eligible job, runs the stage handler that
// matches its status, and advances or fails the job based on the result.
// Heartbeats written during stage execution let a restarted daemon tell
// interrupted work from work that is still in flight.
package workflow
