// Package locationshare is the peer location stream for one share session.
//
// The channel receives "location" frames from the peer and sends the local
// position with SendLocation. Reconnection waits grow linearly with the
// attempt number, and the bearer token of the endpoint provider is sent on
// every handshake.
package locationshare
