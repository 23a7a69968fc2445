// Package message defines the wire records exchanged on gatelink channels and
// decodes them into typed events.
//
// Every inbound frame is a JSON object with a "type" discriminator:
//
//	{"type":"parking","title":"P","message":"M","data":{"lot":"B2","free":14}}
//	{"type":"traffic","timestamp":"...","gates":{"Gate_N1":3},"roads":{"road_1":1.8}}
//	{"type":"location","latitude":1.35,"longitude":103.98,"timestamp":"..."}
//
// ParseEnvelope validates the outer record. DecodeNotification,
// DecodeTraffic and DecodeLocation map a frame to its event and return an
// Invalid-class error for anything that must be dropped. Control frames
// (ping, pong, heartbeat) return ErrControlFrame so callers can skip them
// without counting a failure.
//
// Notification payloads carry free-form values. They decode into Scalar, a
// tagged union of string, number, bool and null.
package message
