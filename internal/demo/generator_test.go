package demo

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simon-dulai/optometry-purchase-predictor/internal/ingest"
)

var fixedNow = func() time.Time { return time.Date(2024, 12, 5, 14, 30, 0, 0, time.UTC) }

func TestUpcomingCSV(t *testing.T) {
	body, name, err := NewWithSeed(42, fixedNow).UpcomingCSV()
	require.NoError(t, err)
	assert.Equal(t, "demo_upcoming_20241205.csv", name)

	rows, err := ingest.ParseUpcoming(bytes.NewReader(body))
	require.NoError(t, err)
	require.Len(t, rows, FutureDays*PatientsPerDay)

	first, last := rows[0], rows[len(rows)-1]
	assert.Equal(t, int64(FirstUpcomingID), first.ExternalPatientID)
	assert.Equal(t, int64(FirstUpcomingID+len(rows)-1), last.ExternalPatientID)
	assert.Equal(t, "2024-12-05", first.AppointmentDate.Format("2006-01-02"))
	assert.Equal(t, "2025-01-03", last.AppointmentDate.Format("2006-01-02"))

	for _, r := range rows {
		a := r.Attributes
		assert.GreaterOrEqual(t, a.Age, 18)
		assert.LessOrEqual(t, a.Age, 85)
		assert.GreaterOrEqual(t, a.DaysLPS, 30)
		assert.LessOrEqual(t, a.DaysLPS, 1460)
		assert.GreaterOrEqual(t, r.AppointmentDate.Hour(), 9)
		assert.LessOrEqual(t, r.AppointmentDate.Hour(), 17)
		assert.Zero(t, r.AppointmentDate.Minute()%15)
		if a.VDU {
			assert.True(t, a.Employed, "vdu users are employed")
		}
		if a.Varifocal {
			assert.Greater(t, a.Age, 45)
		}
	}
}

func TestPastCSV(t *testing.T) {
	body, name, err := NewWithSeed(7, fixedNow).PastCSV()
	require.NoError(t, err)
	assert.Equal(t, "demo_past_20241205.csv", name)

	rows, err := ingest.ParsePast(bytes.NewReader(body))
	require.NoError(t, err)
	require.Len(t, rows, PastDays*PatientsPerDay)

	assert.Equal(t, int64(FirstPastID), rows[0].ExternalPatientID)
	assert.Equal(t, "2024-10-06", rows[0].AppointmentDate.Format("2006-01-02"))
	assert.Equal(t, "2024-12-04", rows[len(rows)-1].AppointmentDate.Format("2006-01-02"))

	var zero int
	for _, r := range rows {
		assert.GreaterOrEqual(t, r.AmountSpent, 0.0)
		assert.LessOrEqual(t, r.AmountSpent, 500.0)
		if r.AmountSpent == 0 {
			zero++
		}
	}
	assert.Positive(t, zero, "some patients buy nothing")
}

func TestGenerator_SeedIsDeterministic(t *testing.T) {
	a, _, err := NewWithSeed(99, fixedNow).PastCSV()
	require.NoError(t, err)
	b, _, err := NewWithSeed(99, fixedNow).PastCSV()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
