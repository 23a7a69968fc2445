// Package natsclient wraps a NATS connection with a circuit breaker and
// connection status tracking.
//
// The relay package uses it to republish channel events. Connection states
// follow Disconnected → Connecting → Connected → Reconnecting → Connected;
// after a threshold of consecutive failures the circuit opens and Connect
// fails fast with ErrCircuitOpen until the backoff elapses.
//
// Basic usage:
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("gatelink"),
//	    natsclient.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	err = client.Publish(ctx, "gatelink.traffic", data)
//
// JetStream persistence is optional: EnsureStream creates or updates a
// stream over the relay subjects and PublishToStream publishes with an ack.
//
// NewTestClient starts a NATS server in a container through testcontainers-go
// for integration tests.
package natsclient
