package message

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ScGaSe/smartlogistics-sub001/errors"
	"github.com/ScGaSe/smartlogistics-sub001/pkg/timestamp"
)

// TypeTraffic is the traffic broadcast discriminator
const TypeTraffic = "traffic"

// Congestion thresholds for road indices
const (
	CongestionModerate = 1.3
	CongestionHigh     = 1.7
)

// TrafficSnapshot is the full gate and road state of one broadcast
type TrafficSnapshot struct {
	Gates     map[string]int     `json:"gates"`
	Roads     map[string]float64 `json:"roads"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// TrafficFrame is the wire record for traffic broadcasts
type TrafficFrame struct {
	Type      string             `json:"type"`
	Timestamp any                `json:"timestamp,omitempty"`
	Gates     map[string]float64 `json:"gates"`
	Roads     map[string]float64 `json:"roads"`
}

// Encode renders the frame as wire JSON
func (f TrafficFrame) Encode() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, errors.WrapInvalid(err, "TrafficFrame", "Encode", "marshal frame")
	}
	return data, nil
}

// DecodeTraffic decodes a traffic broadcast. Missing gate or road maps decode
// as empty so the snapshot still replaces the previous one entirely.
func DecodeTraffic(data []byte) (TrafficSnapshot, error) {
	env, err := ParseEnvelope(data)
	if err != nil {
		return TrafficSnapshot{}, err
	}
	if env.Type != TypeTraffic {
		return TrafficSnapshot{}, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnknownType, env.Type),
			"message", "DecodeTraffic", "map discriminator")
	}

	var frame TrafficFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return TrafficSnapshot{}, errors.WrapInvalid(err, "message", "DecodeTraffic", "unmarshal frame")
	}

	snap := TrafficSnapshot{
		Gates:     make(map[string]int, len(frame.Gates)),
		Roads:     make(map[string]float64, len(frame.Roads)),
		UpdatedAt: timestamp.OrNow(timestamp.Parse(frame.Timestamp)),
	}
	for gate, queue := range frame.Gates {
		if queue < 0 || math.IsNaN(queue) {
			return TrafficSnapshot{}, errors.WrapInvalid(
				fmt.Errorf("gate %s has invalid queue length %v", gate, queue),
				"message", "DecodeTraffic", "validate gates")
		}
		snap.Gates[gate] = int(math.Round(queue))
	}
	for road, index := range frame.Roads {
		snap.Roads[road] = index
	}

	return snap, nil
}

// Clone returns a deep copy
func (s TrafficSnapshot) Clone() TrafficSnapshot {
	out := TrafficSnapshot{
		Gates:     make(map[string]int, len(s.Gates)),
		Roads:     make(map[string]float64, len(s.Roads)),
		UpdatedAt: s.UpdatedAt,
	}
	for k, v := range s.Gates {
		out.Gates[k] = v
	}
	for k, v := range s.Roads {
		out.Roads[k] = v
	}
	return out
}

// GateQueue is one gate and its queue length
type GateQueue struct {
	Gate   string `json:"gate"`
	Length int    `json:"length"`
}

// Busiest returns up to n gates ordered by queue length, longest first.
// Ties are ordered by gate name. n <= 0 returns all gates.
func (s TrafficSnapshot) Busiest(n int) []GateQueue {
	gates := make([]GateQueue, 0, len(s.Gates))
	for gate, length := range s.Gates {
		gates = append(gates, GateQueue{Gate: gate, Length: length})
	}
	sort.Slice(gates, func(i, j int) bool {
		if gates[i].Length != gates[j].Length {
			return gates[i].Length > gates[j].Length
		}
		return gates[i].Gate < gates[j].Gate
	})
	if n > 0 && n < len(gates) {
		gates = gates[:n]
	}
	return gates
}

// CongestionLevel buckets a road index into "low", "moderate" or "high"
func CongestionLevel(index float64) string {
	switch {
	case index < CongestionModerate:
		return "low"
	case index < CongestionHigh:
		return "moderate"
	default:
		return "high"
	}
}
