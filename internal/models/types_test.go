package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	for _, s := range []string{
		"2024-01-01 10:00:00",
		"2024-01-01T10:00:00",
		"2024-01-01 10:00",
		"2024-01-01T10:00:00Z",
		" 2024-01-01 10:00:00 ",
	} {
		got, ok := ParseTimestamp(s, time.UTC)
		require.True(t, ok, s)
		require.True(t, want.Equal(got), "%s parsed as %s", s, got)
	}
}

func TestParseTimestampLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)

	got, ok := ParseTimestamp("2024-01-01 09:00:00", tokyo)
	require.True(t, ok)
	require.True(t, got.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	// An explicit zone wins over the default location.
	got, ok = ParseTimestamp("2024-01-01T09:00:00Z", tokyo)
	require.True(t, ok)
	require.True(t, got.Equal(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)))
}

func TestParseTimestampInvalid(t *testing.T) {
	for _, s := range []string{"", "not-a-date", "yesterday", "01/02/2024"} {
		_, ok := ParseTimestamp(s, time.UTC)
		require.False(t, ok, s)
	}
}

func TestReadingDecode(t *testing.T) {
	body := `{"id":7,"robotid":"Rpi__1","sensorId":"Sensor__1","timestamp":"2024-01-01 10:00:00",
		"temperature":25.1,"humidity":null,"controlMode":"timer","motorInterval":10,"powerconsumption":3.5}`

	var r Reading
	require.NoError(t, json.Unmarshal([]byte(body), &r))
	require.NoError(t, r.Validate())
	require.Equal(t, int64(7), *r.ID)
	require.Equal(t, "Rpi__1", r.RobotID)
	require.Nil(t, r.Humidity)
	require.Equal(t, 3.5, *r.PowerConsumption)

	v, ok := Temperature.Value(r)
	require.True(t, ok)
	require.Equal(t, 25.1, v)

	_, ok = Humidity.Value(r)
	require.False(t, ok)
}

func TestReadingValidate(t *testing.T) {
	require.Error(t, Reading{SensorID: "S"}.Validate())
	require.Error(t, Reading{RobotID: "R"}.Validate())
	require.NoError(t, Reading{RobotID: "R", SensorID: "S"}.Validate())
}

func TestMetric(t *testing.T) {
	m, err := ParseMetric("humidity")
	require.NoError(t, err)
	require.Equal(t, Humidity, m)
	require.Equal(t, "Humidity (%)", m.Label())

	_, err = ParseMetric("Humidity")
	require.Error(t, err)
}
