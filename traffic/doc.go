// Package traffic is the gate queue and road congestion broadcast channel.
//
// Each "traffic" frame replaces the current snapshot entirely; gates or roads
// absent from a frame are absent from the snapshot.
package traffic
