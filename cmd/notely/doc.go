// Command notely is the command-line client for the notely attachment
// upload queue. Queue commands talk to a running daemon over its HTTP API
// and fall back to the queue database when no daemon answers, so
// attachments can be queued while fully offline.
//
// Common commands:
//
//	notely start            launch the background daemon
//	notely add FILE --note  queue a file for upload
//	notely queue list       show the queue in upload order
//	notely queue watch      follow live queue events
//	notely status           daemon, connectivity and queue summary
//	notely logs -f          follow daemon logs
package main
