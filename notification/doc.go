// Package notification is the user notification channel.
//
// A Channel supervises the /ws/user/{id} stream, decodes notification frames
// into message.Notification values and keeps the latest notification, an
// unread counter and a bounded history. Every decoded notification is handed
// to a Sink after the state update, then published on the event topic.
//
// Sinks:
//   - LogSink writes notifications to a slog.Logger
//   - DesktopSink raises platform alerts through github.com/gen2brain/beeep
//   - AsyncSink moves delivery onto a pkg/worker pool
//   - MultiSink fans out to several sinks
//
// A sink error or panic is logged and counted; it never changes channel state.
package notification
