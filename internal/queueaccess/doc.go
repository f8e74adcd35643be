// Package queueaccess gives the CLI one queue interface whether a daemon is
// running (HTTP API) or not (direct SQLite access).
package queueaccess
