package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTimeLabel(t *testing.T) {
	cases := []struct {
		name  string
		label string
		want  string
	}{
		{"plain", "09:00", "09:00"},
		{"single digit hour", "9:00", "09:00"},
		{"range", "09:00-10:00", "09:00"},
		{"range with spaces", "09:00 - 10:00", "09:00"},
		{"leading whitespace", "  09:00", "09:00"},
		{"am suffix", "9:30 AM", "09:30"},
		{"afternoon", "13:30-14:00", "13:30"},
		{"hour out of range", "24:00", ""},
		{"no clock token", "noon", ""},
		{"empty", "", ""},
		{"wrong separator", "9h30", ""},
		{"text before clock", "at 9:00", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeTimeLabel(tc.label))
		})
	}
}

func TestMinutesOfDay(t *testing.T) {
	mins, err := minutesOfDay("08:30")
	assert.NoError(t, err)
	assert.Equal(t, 510, mins)

	_, err = minutesOfDay("25:00")
	assert.Error(t, err)
	_, err = minutesOfDay("08:60")
	assert.Error(t, err)
	_, err = minutesOfDay("0800")
	assert.Error(t, err)
}

func TestFormatMinutes(t *testing.T) {
	assert.Equal(t, "08:30", formatMinutes(510))
	assert.Equal(t, "00:00", formatMinutes(0))
	assert.Equal(t, "13:30", formatMinutes(810))
}
