package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2024, Month: time.February, Day: 29}, d)
	assert.Equal(t, "2024-02-29", d.String())

	_, err = ParseDate("2023-02-29") // not a leap year
	assert.Error(t, err)
	_, err = ParseDate("2024-1-2")
	assert.Error(t, err)
}

func TestDateArithmetic(t *testing.T) {
	d := Date{Year: 2024, Month: time.January, Day: 31}

	assert.Equal(t, "2024-02-01", d.AddDays(1).String())
	assert.Equal(t, "2024-03-02", d.AddMonths(1).String(), "month addition normalizes past short months")
	assert.Equal(t, time.Wednesday, d.Weekday())

	start := Date{Year: 2024, Month: time.January, Day: 2}
	assert.Equal(t, 29, d.DaysSince(start))
	assert.Equal(t, -29, start.DaysSince(d))

	assert.Equal(t, 0, d.MonthsSince(start))
	assert.Equal(t, 13, Date{Year: 2025, Month: time.February, Day: 1}.MonthsSince(start))

	assert.True(t, start.Before(d))
	assert.True(t, d.After(start))
}
