// Package testutil provides test doubles for the channel layer.
//
// WSServer is a scripted WebSocket backend built on httptest and the gorilla
// Upgrader. It records handshake paths and headers, pushes frames to the
// connected clients, drops connections on demand and captures the close
// codes clients send.
//
// Publisher records relay publishes in order and can be told to fail. Relay
// tests wait on it with WaitFirst. RecordingSink captures delivered
// notifications and can be told to fail or block. The frame builders in
// data.go produce wire records for the three channel kinds.
//
// Nothing in this package imports the channel packages, so their internal
// tests can use it.
package testutil
