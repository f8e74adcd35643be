// Package daemon coordinates the long-running notelyd process.
//
// It wires the queue store, the upload pool, the leader lock, the
// connectivity monitor and the HTTP API into a single lifecycle with
// flock-based locking so only one daemon runs per log directory. Several
// processes may share one queue database; only the process holding the
// leader lock uploads, the others enqueue and follow events.
//
// Keep orchestration here: upload mechanics live in upload, ordering and
// enqueue rules in controller.
package daemon
