package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ScGaSe/smartlogistics-sub001/errors"
)

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		control bool
		wantErr bool
	}{
		{"simple", `{"type":"parking"}`, "parking", false, false},
		{"mixed case", `{"type":"  Flight_Update "}`, "flight_update", false, false},
		{"ping", `{"type":"ping"}`, "ping", true, false},
		{"heartbeat upper", `{"type":"HEARTBEAT"}`, "heartbeat", true, false},
		{"missing type", `{"title":"x"}`, "", false, true},
		{"empty type", `{"type":""}`, "", false, true},
		{"numeric type", `{"type":7}`, "", false, true},
		{"malformed", `{"type":"parking"`, "", false, true},
		{"array", `[{"type":"parking"}]`, "", false, true},
		{"empty", ``, "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEnvelope([]byte(tt.input))
			switch {
			case tt.control:
				assert.True(t, IsControl(err))
				assert.Equal(t, tt.want, env.Type)
				assert.Equal(t, "control", DropReason(err))
			case tt.wantErr:
				require.Error(t, err)
				assert.True(t, errors.IsInvalid(err))
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, env.Type)
			}
		})
	}
}

func TestDropReason(t *testing.T) {
	_, missing := ParseEnvelope([]byte(`{}`))
	_, unknown := DecodeTraffic([]byte(`{"type":"weather"}`))
	_, invalid := ParseEnvelope([]byte(`not json`))

	assert.Equal(t, "", DropReason(nil))
	assert.Equal(t, "missing_type", DropReason(missing))
	assert.Equal(t, "unknown_type", DropReason(unknown))
	assert.Equal(t, "invalid", DropReason(invalid))
}
