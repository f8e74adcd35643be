// Package estimator tracks transfer speed per job and across the process and
// derives remaining-time estimates from it.
//
// Per-job samples live in a bounded ring buffer. The process-wide speed is an
// exponential moving average seeded by the first observed sample. Nothing in
// this package is persisted; a restart begins from zero.
package estimator
