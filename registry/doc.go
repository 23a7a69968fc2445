// Package registry owns one channel instance per kind.
//
// The composition root builds a Registry from Options and hands it to
// consumers. Channels are created on first access and share the registry's
// endpoint provider, transport mode, reconnection settings and metrics.
// Close releases every channel that was created.
package registry
