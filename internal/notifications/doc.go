// Package notifications delivers user-facing upload messages and reports
// terminal upload failures.
//
// The default Service publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when notifications are disabled or no
// topic is set. A configured ntfy topic is treated as the user's permission
// to receive notifications. SentryReporter forwards jobs that exhausted
// their retry budget to Sentry when a DSN is configured and otherwise only
// logs them.
package notifications
