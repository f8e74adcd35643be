// Package broadcast propagates queue mutation events between every context
// watching the same upload queue.
//
// A Hub fans events out to in-process subscribers (websocket clients, CLI
// watchers, the controller's observers) and skips delivery back to the
// context that produced the event. An optional RedisBridge relays events to
// other processes sharing the queue. Delivery is best-effort: the store stays
// the source of truth and a refresh always recovers state.
package broadcast
