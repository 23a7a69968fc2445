package locationshare

import (
	"github.com/ScGaSe/smartlogistics-sub001/channel"
	"github.com/ScGaSe/smartlogistics-sub001/message"
	"github.com/ScGaSe/smartlogistics-sub001/pkg/timestamp"
)

// Simulated peer walking from the car park to the terminal entrance
var fallbackPath = []struct{ lat, lon, speed, heading float64 }{
	{1.35610, 103.98720, 1.2, 45},
	{1.35640, 103.98750, 1.3, 45},
	{1.35670, 103.98785, 1.4, 50},
	{1.35695, 103.98820, 1.1, 60},
	{1.35710, 103.98860, 0.8, 75},
}

// FallbackFrames is the simulated peer location rotation
func FallbackFrames(_ channel.Endpoint) [][]byte {
	now := timestamp.Now()
	frames := make([][]byte, 0, len(fallbackPath))
	for _, p := range fallbackPath {
		loc := message.Location{
			Latitude:  p.lat,
			Longitude: p.lon,
			Accuracy:  message.Float(5),
			Speed:     message.Float(p.speed),
			Heading:   message.Float(p.heading),
			Timestamp: now,
		}
		data, err := loc.Encode()
		if err != nil {
			continue
		}
		frames = append(frames, data)
	}
	return frames
}
