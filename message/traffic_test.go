package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ScGaSe/smartlogistics-sub001/errors"
)

func TestDecodeTraffic(t *testing.T) {
	raw := `{"type":"traffic","timestamp":"2024-03-01T08:00:00","gates":{"Gate_N1":3,"Gate_S2":7},"roads":{"road_1":1.8}}`

	snap, err := DecodeTraffic([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"Gate_N1": 3, "Gate_S2": 7}, snap.Gates)
	assert.Equal(t, map[string]float64{"road_1": 1.8}, snap.Roads)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), snap.UpdatedAt)
}

func TestDecodeTraffic_MissingMapsAreEmpty(t *testing.T) {
	snap, err := DecodeTraffic([]byte(`{"type":"TRAFFIC"}`))
	require.NoError(t, err)

	assert.NotNil(t, snap.Gates)
	assert.Empty(t, snap.Gates)
	assert.Empty(t, snap.Roads)
	assert.False(t, snap.UpdatedAt.IsZero())
}

func TestDecodeTraffic_Rejects(t *testing.T) {
	inputs := []string{
		`{"type":"traffic","gates":`,
		`{"type":"location","latitude":1,"longitude":2}`,
		`{"type":"traffic","gates":{"Gate_N1":"three"}}`,
		`{"type":"traffic","gates":{"Gate_N1":-1}}`,
		`{"gates":{}}`,
	}

	for _, in := range inputs {
		_, err := DecodeTraffic([]byte(in))
		require.Error(t, err, in)
		assert.True(t, errors.IsInvalid(err), in)
	}
}

func TestTrafficSnapshot_Busiest(t *testing.T) {
	snap := TrafficSnapshot{Gates: map[string]int{"A": 2, "B": 9, "C": 9, "D": 0}}

	assert.Equal(t, []GateQueue{{"B", 9}, {"C", 9}}, snap.Busiest(2))
	assert.Len(t, snap.Busiest(0), 4)
	assert.Len(t, snap.Busiest(10), 4)
	assert.Empty(t, TrafficSnapshot{}.Busiest(3))
}

func TestTrafficSnapshot_Clone(t *testing.T) {
	snap := TrafficSnapshot{Gates: map[string]int{"A": 1}, Roads: map[string]float64{"r": 1.1}}
	clone := snap.Clone()
	clone.Gates["A"] = 5
	clone.Roads["x"] = 2

	assert.Equal(t, 1, snap.Gates["A"])
	assert.NotContains(t, snap.Roads, "x")
}

func TestCongestionLevel(t *testing.T) {
	assert.Equal(t, "low", CongestionLevel(1.0))
	assert.Equal(t, "moderate", CongestionLevel(1.3))
	assert.Equal(t, "moderate", CongestionLevel(1.69))
	assert.Equal(t, "high", CongestionLevel(1.7))
}

func TestTrafficFrame_Encode(t *testing.T) {
	data, err := TrafficFrame{
		Type:  TypeTraffic,
		Gates: map[string]float64{"Gate_N1": 4},
		Roads: map[string]float64{"road_1": 1.2},
	}.Encode()
	require.NoError(t, err)

	snap, err := DecodeTraffic(data)
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Gates["Gate_N1"])
}
