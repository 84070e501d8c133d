// Package notifications announces finished scenegen runs.
//
// The default implementation publishes to the ntfy topic configured in
// config.toml and degrades to a no-op when no topic is set, so callers can
// notify unconditionally.
package notifications
