package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaypoint_UnmarshalAliases(t *testing.T) {
	tests := []struct {
		name string
		json string
		want Waypoint
	}{
		{
			name: "Short keys",
			json: `{"lat": 40.7128, "lng": -74.0060, "alt": 50}`,
			want: Waypoint{Latitude: 40.7128, Longitude: -74.0060, AltitudeM: 50},
		},
		{
			name: "Long keys",
			json: `{"latitude": 1.5, "longitude": 2.5, "altitude_m": 30, "action": "spray", "duration_s": 4}`,
			want: Waypoint{Latitude: 1.5, Longitude: 2.5, AltitudeM: 30, Action: "spray", DurationS: 4},
		},
		{
			name: "Missing fields default to zero",
			json: `{"lat": 10}`,
			want: Waypoint{Latitude: 10},
		},
		{
			name: "Completed flag is not trusted",
			json: `{"lat": 1, "lon": 2, "completed": true}`,
			want: Waypoint{Latitude: 1, Longitude: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Waypoint
			require.NoError(t, json.Unmarshal([]byte(tt.json), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMissionDescriptor_Normalize(t *testing.T) {
	d := MissionDescriptor{
		MissionID: 7,
		Waypoints: []Waypoint{
			{Latitude: 95, Longitude: 0},
			{Latitude: 10, Longitude: 20, AltitudeM: -5},
			{Latitude: 10, Longitude: 200},
			{Latitude: 11, Longitude: 21, AltitudeM: 40, Completed: true},
		},
	}

	dropped, err := d.Normalize()
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)
	require.Len(t, d.Waypoints, 2)
	assert.Zero(t, d.Waypoints[0].AltitudeM)
	assert.False(t, d.Waypoints[1].Completed)

	empty := MissionDescriptor{Waypoints: []Waypoint{{Latitude: -100}}}
	_, err = empty.Normalize()
	assert.ErrorIs(t, err, ErrNoWaypoints)
}

func TestParseCommand(t *testing.T) {
	t.Run("Start with descriptor", func(t *testing.T) {
		msg := `{"type":"command","data":{"action":"start","mission_id":1,"waypoints":[{"lat":40.7128,"lng":-74.0060,"alt":50}]}}`
		cmd, ok, err := ParseCommand([]byte(msg))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, ActionStart, cmd.Action)
		require.NotNil(t, cmd.MissionID)
		assert.Equal(t, int64(1), *cmd.MissionID)
		assert.Equal(t, int64(1), cmd.MissionDescriptor.MissionID)
		require.Len(t, cmd.Waypoints, 1)
		assert.Equal(t, 50.0, cmd.Waypoints[0].AltitudeM)
	})

	t.Run("Pause without mission id", func(t *testing.T) {
		cmd, ok, err := ParseCommand([]byte(`{"type":"command","data":{"action":"pause"}}`))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, ActionPause, cmd.Action)
		assert.Nil(t, cmd.MissionID)
	})

	t.Run("Non-command message", func(t *testing.T) {
		_, ok, err := ParseCommand([]byte(`{"type":"hello","data":{}}`))
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Malformed json", func(t *testing.T) {
		_, ok, err := ParseCommand([]byte(`{"type":`))
		assert.Error(t, err)
		assert.False(t, ok)
	})

	t.Run("Command without data", func(t *testing.T) {
		_, _, err := ParseCommand([]byte(`{"type":"command"}`))
		assert.Error(t, err)
	})
}

func TestTelemetry_RoundTrip(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 30, 0, 123456000, time.UTC)
	tel := Telemetry{
		MissionID:         3,
		Timestamp:         Timestamp(ts),
		Latitude:          40.712812345678,
		Longitude:         -74.006012345678,
		AltitudeM:         49.98765,
		SpeedMS:           14.996,
		BatteryPercent:    99.96,
		HeadingDeg:        359.94,
		RollDeg:           -0.04,
		PitchDeg:          -7.46,
		YawDeg:            12.35,
		GPSFixType:        3,
		SatellitesVisible: 12,
		GroundSpeedMS:     15.123,
		VerticalSpeedMS:   -1.005,
	}
	tel.Round()

	assert.Equal(t, 40.71281235, tel.Latitude)
	assert.Equal(t, 49.99, tel.AltitudeM)
	assert.Equal(t, 100.0, tel.BatteryPercent)
	assert.Equal(t, 0.0, tel.RollDeg)

	msg, err := NewEnvelope(TypeTelemetry, tel)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	assert.Equal(t, TypeTelemetry, env.Type)

	var back Telemetry
	require.NoError(t, json.Unmarshal(env.Data, &back))
	back.RunID, back.Status = tel.RunID, tel.Status
	assert.Equal(t, tel, back)

	// Formatting is idempotent.
	again := back
	again.Round()
	assert.Equal(t, back, again)
}

func TestStatusEvent_JSON(t *testing.T) {
	ev := StatusEvent{
		MissionID:       1,
		Status:          "waypoint_reached",
		Message:         "Reached waypoint 1/1",
		Level:           LevelInfo,
		Timestamp:       Timestamp(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)),
		CurrentWaypoint: 1,
		TotalWaypoints:  1,
		RunID:           "not-on-the-wire",
	}
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"timestamp":"2024-01-02T03:04:05.000000Z"`)
	assert.NotContains(t, string(data), "not-on-the-wire")
}

func TestTimestamp_UnmarshalNaive(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2024-01-02T03:04:05.500000"`), &ts))
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 500000000, time.UTC), ts.Time())
}
