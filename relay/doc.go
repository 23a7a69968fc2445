// Package relay republishes decoded channel events on NATS.
//
// Subjects:
//
//	<prefix>.notifications.<userId>
//	<prefix>.traffic
//	<prefix>.location.<shareId>
//
// The subject comes from the session that read the event, so events still
// queued when a channel switches users keep their original subject.
// Payloads are the JSON encoding of the typed event. Identifiers are made
// subject-safe by replacing '.', '*', '>' and whitespace with '_'.
package relay
