// Package daemon ties the queue, workflow manager, and HTTP API into the
// long-running recap process. A file lock in the log directory enforces a
// single instance per queue database.
package daemon
