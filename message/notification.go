package message

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ScGaSe/smartlogistics-sub001/errors"
	"github.com/ScGaSe/smartlogistics-sub001/pkg/timestamp"
)

// Category classifies a notification
type Category int

// Notification categories
const (
	CategoryUnknown Category = iota
	CategoryFlightUpdate
	CategoryTrainUpdate
	CategoryLocationShare
	CategorySystem
	CategoryParking
	CategoryCongestionAlert
)

var categoryNames = map[Category]string{
	CategoryUnknown:         "unknown",
	CategoryFlightUpdate:    "flight_update",
	CategoryTrainUpdate:     "train_update",
	CategoryLocationShare:   "location_share",
	CategorySystem:          "system",
	CategoryParking:         "parking",
	CategoryCongestionAlert: "congestion_alert",
}

var categoryByName = func() map[string]Category {
	m := make(map[string]Category, len(categoryNames))
	for c, name := range categoryNames {
		if c != CategoryUnknown {
			m[name] = c
		}
	}
	return m
}()

// ParseCategory maps a discriminator to a category, ignoring case.
// Unmapped values return CategoryUnknown.
func ParseCategory(discriminator string) Category {
	if c, ok := categoryByName[strings.ToLower(strings.TrimSpace(discriminator))]; ok {
		return c
	}
	return CategoryUnknown
}

// String returns the wire name of the category
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the wire name
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a wire name
func (c *Category) UnmarshalText(text []byte) error {
	*c = ParseCategory(string(text))
	return nil
}

// Notification is a decoded user notification event
type Notification struct {
	ID        string            `json:"id"`
	Category  Category          `json:"category"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]Scalar `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Read      bool              `json:"read"`
}

// NotificationFrame is the inbound wire record for notifications
type NotificationFrame struct {
	Type      string            `json:"type"`
	ID        string            `json:"id,omitempty"`
	Title     string            `json:"title,omitempty"`
	Message   string            `json:"message,omitempty"`
	Data      map[string]Scalar `json:"data,omitempty"`
	Timestamp any               `json:"timestamp,omitempty"`
}

// Encode renders the frame as wire JSON
func (f NotificationFrame) Encode() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, errors.WrapInvalid(err, "NotificationFrame", "Encode", "marshal frame")
	}
	return data, nil
}

// NewID returns a time-ordered notification id
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// DecodeNotification decodes a notification frame. Frames whose discriminator
// maps to CategoryUnknown are rejected with ErrUnknownType.
func DecodeNotification(data []byte) (Notification, error) {
	env, err := ParseEnvelope(data)
	if err != nil {
		return Notification{}, err
	}

	category := ParseCategory(env.Type)
	if category == CategoryUnknown {
		return Notification{}, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnknownType, env.Type),
			"message", "DecodeNotification", "map discriminator")
	}

	var frame NotificationFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Notification{}, errors.WrapInvalid(err, "message", "DecodeNotification", "unmarshal frame")
	}

	id := strings.TrimSpace(frame.ID)
	if id == "" {
		id = NewID()
	}

	return Notification{
		ID:        id,
		Category:  category,
		Title:     frame.Title,
		Body:      frame.Message,
		Data:      frame.Data,
		CreatedAt: timestamp.OrNow(timestamp.Parse(frame.Timestamp)),
	}, nil
}
