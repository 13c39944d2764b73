package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/simon-dulai/optometry-purchase-predictor/internal/models"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/scoring"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/testhelpers"
)

// flatPredictor predicts the same spend for everyone.
type flatPredictor struct {
	spend float64
	calls int
}

func (p *flatPredictor) Score(scoring.FeatureVector) (scoring.Result, error) {
	p.calls++
	return scoring.Result{PurchaseProbability: 0.25, PredictedSpend: p.spend}, nil
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func addPatient(t *testing.T, db *gorm.DB, tenantID uint, id int64, at time.Time, spend float64) {
	t.Helper()
	p := models.Patient{TenantID: tenantID, ExternalPatientID: id, AppointmentDate: at, Attributes: models.Attributes{Age: 40}}
	require.NoError(t, db.Create(&p).Error)
	require.NoError(t, db.Create(&models.Prediction{PatientID: p.ID, PurchaseProbability: 0.6, PredictedSpend: spend}).Error)
}

func addPast(t *testing.T, db *gorm.DB, tenantID uint, id int64, at time.Time, actual float64, predicted *float64) {
	t.Helper()
	rec := models.PastAppointment{
		TenantID:          tenantID,
		ExternalPatientID: id,
		AppointmentDate:   at,
		AmountSpent:       actual,
		PredictedSpend:    predicted,
	}
	require.NoError(t, db.Create(&rec).Error)
}

func ptr(f float64) *float64 { return &f }

func TestWeeklyForecast_BucketsAreContiguousAndConserveTotals(t *testing.T) {
	db := testhelpers.NewDB(t)
	a := testhelpers.CreateTenant(t, db, "alpha")
	b := testhelpers.CreateTenant(t, db, "beta")

	addPatient(t, db, a, 1, day("2024-12-01 00:00"), 10)  // first instant of week 0
	addPatient(t, db, a, 2, day("2024-12-07 17:00"), 20)  // week 0
	addPatient(t, db, a, 3, day("2024-12-08 00:00"), 30)  // week 1
	addPatient(t, db, a, 4, day("2024-12-28 16:45"), 40)  // week 3
	addPatient(t, db, a, 5, day("2024-12-29 00:00"), 500) // outside
	addPatient(t, db, a, 6, day("2024-11-30 23:59"), 500) // outside
	addPatient(t, db, b, 7, day("2024-12-02 09:00"), 900) // other tenant

	r := NewReader(db, nil, nil)
	buckets, err := r.WeeklyForecast(context.Background(), a, "2024-12-01")
	require.NoError(t, err)
	require.Len(t, buckets, ForecastWeeks)

	assert.Equal(t, []WeekBucket{
		{Date: "2024-12-01", EndDate: "2024-12-08", TotalPredicted: 30, PatientCount: 2},
		{Date: "2024-12-08", EndDate: "2024-12-15", TotalPredicted: 30, PatientCount: 1},
		{Date: "2024-12-15", EndDate: "2024-12-22", TotalPredicted: 0, PatientCount: 0},
		{Date: "2024-12-22", EndDate: "2024-12-29", TotalPredicted: 40, PatientCount: 1},
	}, buckets)

	for i := 1; i < len(buckets); i++ {
		assert.Equal(t, buckets[i-1].EndDate, buckets[i].Date)
	}
	var total float64
	for _, bk := range buckets {
		total += bk.TotalPredicted
	}
	assert.Equal(t, 100.0, total)
}

func TestWeeklyForecast_InvalidDate(t *testing.T) {
	r := NewReader(testhelpers.NewDB(t), nil, nil)

	_, err := r.WeeklyForecast(context.Background(), 1, "01/12/2024")
	var rangeErr *InvalidDateRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, "start_date", rangeErr.Field)
}

func TestMonthlyComparison(t *testing.T) {
	db := testhelpers.NewDB(t)
	a := testhelpers.CreateTenant(t, db, "alpha")
	b := testhelpers.CreateTenant(t, db, "beta")

	addPatient(t, db, a, 1, day("2024-12-03 09:00"), 100.5)
	addPatient(t, db, a, 2, day("2024-12-31 17:00"), 49.5)
	addPatient(t, db, a, 3, day("2025-01-01 09:00"), 999)
	addPast(t, db, a, 10, day("2024-12-10 09:00"), 80, ptr(70))
	addPast(t, db, a, 10, day("2024-12-11 09:00"), 20, ptr(30))
	addPast(t, db, b, 10, day("2024-12-11 09:00"), 5000, ptr(1))

	r := NewReader(db, nil, nil)
	got, err := r.MonthlyComparison(context.Background(), a, "2024-12")
	require.NoError(t, err)

	assert.Equal(t, "2024-12", got.Month)
	assert.InDelta(t, 150.0, got.TotalPredicted, 1e-9)
	assert.InDelta(t, 100.0, got.TotalActual, 1e-9)
	assert.InDelta(t, got.TotalActual-got.TotalPredicted, got.Variance, 1e-9)
	assert.InDelta(t, 100.0, got.PastPredictedTotal, 1e-9)
	assert.True(t, got.PastPredictedComplete)
	assert.Equal(t, 2, got.UpcomingCount)
	assert.Equal(t, 2, got.PastCount)
}

func TestMonthlyComparison_EmptyMonths(t *testing.T) {
	db := testhelpers.NewDB(t)
	a := testhelpers.CreateTenant(t, db, "alpha")
	addPast(t, db, a, 1, day("2024-10-10 09:00"), 60, ptr(50))
	addPatient(t, db, a, 2, day("2024-11-10 09:00"), 75)
	r := NewReader(db, nil, nil)
	ctx := context.Background()

	onlyPast, err := r.MonthlyComparison(ctx, a, "2024-10")
	require.NoError(t, err)
	assert.Equal(t, 0.0, onlyPast.TotalPredicted)
	assert.Equal(t, 60.0, onlyPast.Variance)

	onlyUpcoming, err := r.MonthlyComparison(ctx, a, "2024-11")
	require.NoError(t, err)
	assert.Equal(t, 0.0, onlyUpcoming.TotalActual)
	assert.Equal(t, -75.0, onlyUpcoming.Variance)

	empty, err := r.MonthlyComparison(ctx, a, "2023-01")
	require.NoError(t, err)
	assert.Equal(t, MonthlyComparison{Month: "2023-01", PastPredictedComplete: true}, empty)
}

func TestMonthlyComparison_WithoutScorer(t *testing.T) {
	db := testhelpers.NewDB(t)
	a := testhelpers.CreateTenant(t, db, "alpha")
	addPatient(t, db, a, 1, day("2024-12-03 09:00"), 120)
	addPast(t, db, a, 10, day("2024-12-10 09:00"), 80, nil)
	addPast(t, db, a, 11, day("2024-12-12 09:00"), 30, ptr(25))

	var unloaded *scoring.Scorer
	for _, scorer := range []scoring.Predictor{nil, unloaded} {
		got, err := NewReader(db, scorer, nil).MonthlyComparison(context.Background(), a, "2024-12")
		require.NoError(t, err)

		assert.InDelta(t, 120.0, got.TotalPredicted, 1e-9)
		assert.InDelta(t, 110.0, got.TotalActual, 1e-9)
		assert.InDelta(t, -10.0, got.Variance, 1e-9)
		assert.InDelta(t, 25.0, got.PastPredictedTotal, 1e-9, "unscored rows are left out")
		assert.False(t, got.PastPredictedComplete)
		assert.Equal(t, 2, got.PastCount)
	}
}

func TestMonthlyComparison_BackfillsWithScorer(t *testing.T) {
	db := testhelpers.NewDB(t)
	a := testhelpers.CreateTenant(t, db, "alpha")
	addPast(t, db, a, 10, day("2024-12-10 09:00"), 80, nil)

	got, err := NewReader(db, &flatPredictor{spend: 40}, nil).MonthlyComparison(context.Background(), a, "2024-12")
	require.NoError(t, err)
	assert.InDelta(t, 40.0, got.PastPredictedTotal, 1e-9)
	assert.True(t, got.PastPredictedComplete)
}

func TestMonthlyComparison_InvalidMonth(t *testing.T) {
	r := NewReader(testhelpers.NewDB(t), nil, nil)

	for _, month := range []string{"2024-13", "2024/12", "", "2024-12-01"} {
		_, err := r.MonthlyComparison(context.Background(), 1, month)
		var rangeErr *InvalidDateRangeError
		assert.ErrorAs(t, err, &rangeErr, month)
	}
}

func TestPastByDate_BackfillsMissingPredictions(t *testing.T) {
	db := testhelpers.NewDB(t)
	a := testhelpers.CreateTenant(t, db, "alpha")
	addPast(t, db, a, 1, day("2024-12-10 09:00"), 80, ptr(70))
	addPast(t, db, a, 2, day("2024-12-10 11:00"), 40, nil)
	addPast(t, db, a, 3, day("2024-12-11 09:00"), 40, nil)

	scorer := &flatPredictor{spend: 55}
	r := NewReader(db, scorer, nil)

	views, err := r.PastByDate(context.Background(), a, "2024-12-10")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, 70.0, views[0].PredictedSpend)
	assert.False(t, views[0].Backfilled)
	assert.Equal(t, 55.0, views[1].PredictedSpend)
	assert.True(t, views[1].Backfilled)
	assert.Equal(t, 1, scorer.calls)

	var stored models.PastAppointment
	require.NoError(t, db.Where("external_patient_id = ?", 2).First(&stored).Error)
	assert.Nil(t, stored.PredictedSpend, "backfill is not persisted")
}

func TestPastByDate_BackfillWithoutScorer(t *testing.T) {
	db := testhelpers.NewDB(t)
	a := testhelpers.CreateTenant(t, db, "alpha")
	addPast(t, db, a, 1, day("2024-12-10 09:00"), 80, nil)

	var unloaded *scoring.Scorer
	for _, scorer := range []scoring.Predictor{nil, unloaded} {
		_, err := NewReader(db, scorer, nil).PastByDate(context.Background(), a, "2024-12-10")
		assert.ErrorIs(t, err, scoring.ErrModelUnavailable)
	}
}

func TestListings_AreTenantScoped(t *testing.T) {
	db := testhelpers.NewDB(t)
	a := testhelpers.CreateTenant(t, db, "alpha")
	b := testhelpers.CreateTenant(t, db, "beta")
	addPatient(t, db, a, 1001, day("2024-12-05 09:00"), 120)
	addPatient(t, db, a, 1002, day("2024-12-06 09:00"), 80)
	addPatient(t, db, b, 2001, day("2024-12-05 10:00"), 10)
	addPast(t, db, b, 3001, day("2024-12-05 10:00"), 10, ptr(5))

	r := NewReader(db, nil, nil)
	ctx := context.Background()

	all, err := r.AllPatients(ctx, a)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(1001), all[0].ID)
	assert.Equal(t, 120.0, all[0].PredictedSpend)
	assert.Equal(t, 0.6, all[0].PurchaseProbability)

	onDay, err := r.PatientsByDate(ctx, a, "2024-12-05")
	require.NoError(t, err)
	require.Len(t, onDay, 1)
	assert.Equal(t, int64(1001), onDay[0].ID)

	past, err := r.PastByDate(ctx, a, "2024-12-05")
	require.NoError(t, err)
	assert.Empty(t, past)

	_, err = r.PatientsByDate(ctx, a, "tomorrow")
	var rangeErr *InvalidDateRangeError
	assert.ErrorAs(t, err, &rangeErr)
}
