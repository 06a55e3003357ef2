package datetime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromTime(t *testing.T) {
	// 2025-08-25 is a Monday, 2025-08-24 a Sunday.
	dt := FromTime(time.Date(2025, 8, 25, 13, 37, 42, 0, time.Local))
	assert.Equal(t, DateTime{Year: 25, Month: 8, Day: 25, Weekday: 1, Hour: 13, Minute: 37, Second: 42}, dt)

	dt = FromTime(time.Date(2025, 8, 24, 0, 0, 0, 0, time.Local))
	assert.Equal(t, 7, dt.Weekday)
}

func TestTimeRoundTrip(t *testing.T) {
	want := time.Date(2025, 12, 31, 23, 59, 59, 0, time.Local)
	dt := FromTime(want)
	assert.True(t, dt.Time().Equal(want))
}

func TestValidate(t *testing.T) {
	valid := DateTime{Year: 25, Month: 8, Day: 25, Weekday: 1, Hour: 13, Minute: 37, Second: 42}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name string
		dt   DateTime
	}{
		{"year high", DateTime{Year: 100, Month: 1, Day: 1, Weekday: 1}},
		{"year negative", DateTime{Year: -1, Month: 1, Day: 1, Weekday: 1}},
		{"month zero", DateTime{Year: 25, Month: 0, Day: 1, Weekday: 1}},
		{"month high", DateTime{Year: 25, Month: 13, Day: 1, Weekday: 1}},
		{"day zero", DateTime{Year: 25, Month: 1, Day: 0, Weekday: 1}},
		{"day high", DateTime{Year: 25, Month: 1, Day: 32, Weekday: 1}},
		{"feb 30", DateTime{Year: 25, Month: 2, Day: 30, Weekday: 1}},
		{"feb 29 off leap", DateTime{Year: 25, Month: 2, Day: 29, Weekday: 1}},
		{"weekday zero", DateTime{Year: 25, Month: 1, Day: 1, Weekday: 0}},
		{"weekday high", DateTime{Year: 25, Month: 1, Day: 1, Weekday: 8}},
		{"hour high", DateTime{Year: 25, Month: 1, Day: 1, Weekday: 1, Hour: 24}},
		{"minute high", DateTime{Year: 25, Month: 1, Day: 1, Weekday: 1, Minute: 60}},
		{"second high", DateTime{Year: 25, Month: 1, Day: 1, Weekday: 1, Second: 60}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.dt.Validate())
		})
	}

	// leap year day is legal
	assert.NoError(t, DateTime{Year: 24, Month: 2, Day: 29, Weekday: 4}.Validate())
}

func TestAddMinute(t *testing.T) {
	tests := []struct {
		name string
		in   DateTime
		want DateTime
	}{
		{
			"plain",
			DateTime{Year: 25, Month: 8, Day: 25, Weekday: 1, Hour: 10, Minute: 15, Second: 30},
			DateTime{Year: 25, Month: 8, Day: 25, Weekday: 1, Hour: 10, Minute: 16},
		},
		{
			"hour rollover",
			DateTime{Year: 25, Month: 8, Day: 25, Weekday: 1, Hour: 10, Minute: 59},
			DateTime{Year: 25, Month: 8, Day: 25, Weekday: 1, Hour: 11},
		},
		{
			"day rollover",
			DateTime{Year: 25, Month: 8, Day: 25, Weekday: 1, Hour: 23, Minute: 59},
			DateTime{Year: 25, Month: 8, Day: 26, Weekday: 2},
		},
		{
			"weekday wraps sunday to monday",
			DateTime{Year: 25, Month: 8, Day: 24, Weekday: 7, Hour: 23, Minute: 59},
			DateTime{Year: 25, Month: 8, Day: 25, Weekday: 1},
		},
		{
			"month rollover",
			DateTime{Year: 25, Month: 8, Day: 31, Weekday: 7, Hour: 23, Minute: 59},
			DateTime{Year: 25, Month: 9, Day: 1, Weekday: 1},
		},
		{
			"february off leap year",
			DateTime{Year: 25, Month: 2, Day: 28, Weekday: 5, Hour: 23, Minute: 59},
			DateTime{Year: 25, Month: 3, Day: 1, Weekday: 6},
		},
		{
			"february leap year",
			DateTime{Year: 24, Month: 2, Day: 28, Weekday: 3, Hour: 23, Minute: 59},
			DateTime{Year: 24, Month: 2, Day: 29, Weekday: 4},
		},
		{
			"year rollover",
			DateTime{Year: 25, Month: 12, Day: 31, Weekday: 3, Hour: 23, Minute: 59},
			DateTime{Year: 26, Month: 1, Day: 1, Weekday: 4},
		},
		{
			"century wraps",
			DateTime{Year: 99, Month: 12, Day: 31, Weekday: 5, Hour: 23, Minute: 59},
			DateTime{Year: 0, Month: 1, Day: 1, Weekday: 6},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.AddMinute())
		})
	}
}

func TestString(t *testing.T) {
	dt := DateTime{Year: 25, Month: 8, Day: 25, Weekday: 1, Hour: 9, Minute: 5, Second: 7}
	assert.Equal(t, "Mon 2025-08-25 09:05:07", dt.String())
}
