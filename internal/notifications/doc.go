// Package notifications tells the user when a long identification run ends.
//
// The default implementation publishes to ntfy using the topic URL configured
// in config.toml and degrades to a no-op when no topic is set. Callers depend
// only on the Service interface.
package notifications
