package message

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ScGaSe/smartlogistics-sub001/errors"
	"github.com/ScGaSe/smartlogistics-sub001/pkg/timestamp"
)

// TypeLocation is the location share discriminator
const TypeLocation = "location"

// Location is one position report of a location share session
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Speed     *float64  `json:"speed,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type locationFrame struct {
	Type      string   `json:"type"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
	Timestamp any      `json:"timestamp,omitempty"`
}

// Validate checks coordinate ranges
func (l Location) Validate() error {
	if l.Latitude < -90 || l.Latitude > 90 {
		return errors.WrapInvalid(fmt.Errorf("latitude %v out of range", l.Latitude),
			"Location", "Validate", "check latitude")
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return errors.WrapInvalid(fmt.Errorf("longitude %v out of range", l.Longitude),
			"Location", "Validate", "check longitude")
	}
	return nil
}

// Encode renders the outbound location record. A zero timestamp is sent as now.
func (l Location) Encode() ([]byte, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}

	lat, lon := l.Latitude, l.Longitude
	frame := locationFrame{
		Type:      TypeLocation,
		Latitude:  &lat,
		Longitude: &lon,
		Accuracy:  l.Accuracy,
		Speed:     l.Speed,
		Heading:   l.Heading,
		Timestamp: timestamp.Format(timestamp.OrNow(l.Timestamp)),
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Location", "Encode", "marshal frame")
	}
	return data, nil
}

// DecodeLocation decodes a location frame. Latitude and longitude are required.
func DecodeLocation(data []byte) (Location, error) {
	env, err := ParseEnvelope(data)
	if err != nil {
		return Location{}, err
	}
	if env.Type != TypeLocation {
		return Location{}, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnknownType, env.Type),
			"message", "DecodeLocation", "map discriminator")
	}

	var frame locationFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Location{}, errors.WrapInvalid(err, "message", "DecodeLocation", "unmarshal frame")
	}
	if frame.Latitude == nil || frame.Longitude == nil {
		return Location{}, errors.WrapInvalid(errors.ErrInvalidData, "message", "DecodeLocation", "require coordinates")
	}

	loc := Location{
		Latitude:  *frame.Latitude,
		Longitude: *frame.Longitude,
		Accuracy:  frame.Accuracy,
		Speed:     frame.Speed,
		Heading:   frame.Heading,
		Timestamp: timestamp.OrNow(timestamp.Parse(frame.Timestamp)),
	}
	if err := loc.Validate(); err != nil {
		return Location{}, err
	}
	return loc, nil
}

// Float returns a pointer to v, for optional location fields
func Float(v float64) *float64 {
	return &v
}
