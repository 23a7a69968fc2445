package notification

import (
	"github.com/ScGaSe/smartlogistics-sub001/channel"
	"github.com/ScGaSe/smartlogistics-sub001/message"
	"github.com/ScGaSe/smartlogistics-sub001/pkg/timestamp"
)

var fallbackRotation = []message.NotificationFrame{
	{
		Type:    "flight_update",
		Title:   "Flight SQ321 gate change",
		Message: "Boarding moved to gate B7",
		Data:    map[string]message.Scalar{"flight": message.StringScalar("SQ321"), "gate": message.StringScalar("B7")},
	},
	{
		Type:    "parking",
		Title:   "Car park P2 almost full",
		Message: "92% of spaces taken",
		Data:    map[string]message.Scalar{"lot": message.StringScalar("P2"), "occupancy": message.NumberScalar(0.92)},
	},
	{
		Type:    "congestion_alert",
		Title:   "Queue building at Gate_N1",
		Message: "Expect a 15 minute wait",
		Data:    map[string]message.Scalar{"gate": message.StringScalar("Gate_N1"), "wait_min": message.NumberScalar(15)},
	},
	{
		Type:    "train_update",
		Title:   "Airport line delayed",
		Message: "Next train in 12 minutes",
		Data:    map[string]message.Scalar{"delayed": message.BoolScalar(true)},
	},
	{
		Type:    "system",
		Title:   "Simulation mode",
		Message: "Showing generated notifications",
	},
}

// FallbackFrames is the simulated notification rotation
func FallbackFrames(_ channel.Endpoint) [][]byte {
	now := timestamp.Format(timestamp.Now())
	frames := make([][]byte, 0, len(fallbackRotation))
	for _, f := range fallbackRotation {
		f.ID = message.NewID()
		f.Timestamp = now
		data, err := f.Encode()
		if err != nil {
			continue
		}
		frames = append(frames, data)
	}
	return frames
}
