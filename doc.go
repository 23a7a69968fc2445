// Package gatelink is the realtime channel layer of the smart logistics
// airport client.
//
// # Channels
//
// Three long-lived server-push channels are managed:
//
//   - notifications: per-user alerts (flight updates, parking, congestion),
//     kept with an unread counter and a bounded history
//   - traffic broadcast: gate queue lengths and road congestion, replaced
//     wholesale on every frame
//   - location share: bidirectional position reports for one share session
//
// Each channel is a channel.Supervisor that owns the connection lifecycle:
// it resolves the endpoint, dials, decodes frames into typed events, and
// reconnects after unexpected loss. Reconnection is bounded by a ceiling of
// ten attempts; notifications and traffic wait a fixed five seconds, location
// share waits five seconds times the attempt number. A successful open
// resets the counter. A client-initiated disconnect never reconnects.
//
// # Fallback
//
// With simulation enabled the live WebSocket transport is replaced by a
// generator that produces the same wire frames on a timer. Consumers observe
// the same states and events in both modes.
//
// # Observation
//
// State and events are published per channel on an in-process bus backed by
// github.com/cskr/pubsub:
//
//	n := reg.Notifications()
//	events := n.Subscribe()
//	defer n.Unsubscribe(events)
//	if err := n.Connect("42"); err != nil {
//	    return err
//	}
//	for ev := range events {
//	    note := ev.(message.Notification)
//	    ...
//	}
//
// Channel snapshots map onto health statuses, and every transition is counted
// in Prometheus metrics under the "gatelink" namespace. The relay package
// republishes events to NATS subjects so other services can follow them.
//
// # Packages
//
//   - channel: supervisor, endpoint resolution, WebSocket and fallback dialers
//   - message: wire formats and typed events
//   - notification, traffic, locationshare: the typed channels
//   - registry: lazy single-instance ownership of the channels
//   - bus: per-channel state and event fan-out
//   - relay, natsclient: NATS republishing
//   - config: JSON/YAML configuration with environment overrides
//   - health, metric: health aggregation and Prometheus metrics
//   - cmd/gatelink: the command-line client
package gatelink
