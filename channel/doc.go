// Package channel supervises one logical real-time stream.
//
// A Supervisor owns a single channel (notifications, traffic broadcast or one
// location-share session). It resolves the endpoint, opens a Conn through its
// Dialer, decodes every inbound frame and republishes state and events on its
// bus. Failures run the reconnection policy from pkg/retry.
//
// Two Dialer implementations exist: WebSocketDialer for live backends and
// FallbackDialer, which synthesizes frames when simulation is enabled. The
// Supervisor does not know which one it drives.
//
// State machine:
//
//	Disconnected -> Connecting -> Connected
//	Connected    -> Disconnected                (close or failure)
//	Disconnected -> Reconnecting -> Connecting  (automatic retry)
//	any          -> Disconnected                (Disconnect)
//
// Connect and Disconnect return without waiting for network I/O. Once
// Disconnect returns, nothing from the old session is published.
//
// Usage:
//
//	sup := channel.NewSupervisor(channel.KindTraffic, decode,
//	    channel.WithDialer(channel.NewWebSocketDialer()),
//	    channel.WithEndpoint(provider),
//	    channel.WithLogger(logger),
//	)
//	defer sup.Close()
//
//	states := sup.SubscribeState()
//	_ = sup.Connect(channel.Params{})
package channel
