// Package errors provides the error taxonomy shared by gatelink channels.
//
// # Overview
//
// Errors fall into three classes that drive how a channel reacts:
//
//   - Transient: dial, write or unexpected-close failures. The reconnect
//     policy decides whether to retry.
//   - Invalid: malformed frames, unknown discriminators and bad configuration.
//     Frames are logged and dropped; configuration falls back to defaults.
//   - Fatal: the reconnect ceiling was reached. The session stays down until
//     the next explicit Connect.
//
// The classes work with errors.Is, errors.As and wrapping chains.
//
// # Wrapping
//
// All wrapping follows the format:
//
//	"component.method: action failed: %w"
//
// Use the classified wrappers when the class matters to the caller:
//
//	errors.WrapTransient(err, "WebSocketDialer", "Dial", "handshake")
//	errors.WrapInvalid(err, "Decoder", "Decode", "parse frame")
//	errors.WrapFatal(err, "Supervisor", "session", "reconnect")
//
// # Public surface
//
// Channels never return transport errors to callers. They expose a
// description produced by Describe, which distinguishes the exhaustion
// error from a transient failure.
package errors
