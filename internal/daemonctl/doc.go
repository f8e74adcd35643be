// Package daemonctl launches, stops and inspects the notely daemon from the
// CLI. The daemon is reached over its HTTP API; process control falls back
// to the pid file under the log directory.
package daemonctl
