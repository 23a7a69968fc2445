package traffic

import (
	"github.com/ScGaSe/smartlogistics-sub001/channel"
	"github.com/ScGaSe/smartlogistics-sub001/message"
	"github.com/ScGaSe/smartlogistics-sub001/pkg/timestamp"
)

var fallbackRotation = []message.TrafficFrame{
	{
		Gates: map[string]float64{"Gate_N1": 4, "Gate_N2": 2, "Gate_S1": 7},
		Roads: map[string]float64{"Airport_Blvd": 1.1, "Ring_Road": 1.4},
	},
	{
		Gates: map[string]float64{"Gate_N1": 9, "Gate_N2": 3, "Gate_S1": 5},
		Roads: map[string]float64{"Airport_Blvd": 1.5, "Ring_Road": 1.8},
	},
	{
		Gates: map[string]float64{"Gate_N1": 12, "Gate_N2": 6, "Gate_S1": 2},
		Roads: map[string]float64{"Airport_Blvd": 1.9, "Ring_Road": 1.2},
	},
}

// FallbackFrames is the simulated traffic rotation
func FallbackFrames(_ channel.Endpoint) [][]byte {
	now := timestamp.Format(timestamp.Now())
	frames := make([][]byte, 0, len(fallbackRotation))
	for _, f := range fallbackRotation {
		f.Type = message.TypeTraffic
		f.Timestamp = now
		data, err := f.Encode()
		if err != nil {
			continue
		}
		frames = append(frames, data)
	}
	return frames
}
