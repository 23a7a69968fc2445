package channel

// Event is a decoded frame stamped with the session that produced it.
// Params are captured when the frame is read, so an event queued before a
// reconnect or a Disconnect still names its own session.
type Event struct {
	Kind    Kind
	Params  Params
	Payload any
}
