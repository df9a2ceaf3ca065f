// Command recap is the CLI and daemon entrypoint for the video recap
// pipeline. `recap start` runs the daemon in the foreground; the queue
// commands operate directly on the shared SQLite store.
package main
