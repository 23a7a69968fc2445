package testutil

import (
	"encoding/json"
	"fmt"
	"time"
)

// Malformed frames every decoder must drop
var MalformedFrames = []string{
	`{"type":"parking","title":`,
	`not json at all`,
	`[{"type":"parking"}]`,
	`{"title":"no type"}`,
	`{"type":""}`,
	``,
}

// NotificationFrame builds an inbound notification record
func NotificationFrame(kind, title, body string) []byte {
	return mustJSON(map[string]any{
		"type":    kind,
		"title":   title,
		"message": body,
	})
}

// NotificationFrameWithData builds a notification record carrying a payload
func NotificationFrameWithData(kind, title, body string, data map[string]any) []byte {
	return mustJSON(map[string]any{
		"type":      kind,
		"title":     title,
		"message":   body,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// TrafficFrame builds a traffic broadcast record. Nil maps are omitted.
func TrafficFrame(gates map[string]int, roads map[string]float64) []byte {
	frame := map[string]any{
		"type":      "traffic",
		"timestamp": time.Now().UTC().Format("2006-01-02T15:04:05.000000"),
	}
	if gates != nil {
		frame["gates"] = gates
	}
	if roads != nil {
		frame["roads"] = roads
	}
	return mustJSON(frame)
}

// LocationFrame builds a location record
func LocationFrame(lat, lon float64) []byte {
	return mustJSON(map[string]any{
		"type":      "location",
		"latitude":  lat,
		"longitude": lon,
		"accuracy":  5.0,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal frame: %v", err))
	}
	return data
}
