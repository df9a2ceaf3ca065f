// Package api defines the transport-friendly representations of queue jobs
// and daemon state served over HTTP, plus the read-side service that builds
// them from the store.
package api
