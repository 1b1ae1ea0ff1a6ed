// Package collectorrun exposes a shared Run entrypoint used by the CLI to
// start the development collector: an HTTP server speaking the batch
// transaction protocol that logs or appends committed payloads.
package collectorrun
