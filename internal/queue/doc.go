// Package queue persists upload jobs in SQLite and exposes the operations
// that drive their lifecycle.
//
// The Store manages database connections, goose-managed schema migrations,
// stats queries, stale-claim recovery, and the status transitions of the
// upload state machine (pending, processing, error, failed). Claiming a job
// is a single conditional UPDATE so no two workers, in this process or any
// other sharing the database file, can hold the same job.
//
// Every mutation is announced through the Store's Publisher so observers can
// re-sync; the database itself remains the source of truth for what still
// needs uploading, including across restarts.
package queue
