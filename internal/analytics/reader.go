package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/simon-dulai/optometry-purchase-predictor/internal/logger"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/models"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/scoring"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"

	// ForecastWeeks is the number of 7-day buckets in a weekly forecast.
	ForecastWeeks = 4
	week          = 7 * 24 * time.Hour
)

// InvalidDateRangeError is returned for a date or month argument that cannot
// be parsed. No query is run.
type InvalidDateRangeError struct {
	Field string
	Value string
	Err   error
}

func (e *InvalidDateRangeError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *InvalidDateRangeError) Unwrap() error {
	return e.Err
}

// WeekBucket is one 7-day window of a weekly forecast. EndDate is exclusive.
type WeekBucket struct {
	Date           string  `json:"date"`
	EndDate        string  `json:"end_date"`
	TotalPredicted float64 `json:"total_predicted"`
	PatientCount   int     `json:"patient_count"`
}

// MonthlyComparison compares predicted and actual spend for a calendar month.
// PastPredictedComplete is false when some past rows had no stored prediction
// and no scorer was available; those rows are left out of PastPredictedTotal.
type MonthlyComparison struct {
	Month                 string  `json:"month"`
	TotalPredicted        float64 `json:"total_predicted"`
	TotalActual           float64 `json:"total_actual"`
	Variance              float64 `json:"variance"`
	PastPredictedTotal    float64 `json:"past_predicted_total"`
	PastPredictedComplete bool    `json:"past_predicted_complete"`
	UpcomingCount         int     `json:"upcoming_count"`
	PastCount             int     `json:"past_count"`
}

// PatientView is an upcoming patient with its prediction.
type PatientView struct {
	ID int64 `json:"id"`
	models.Attributes
	AppointmentDate     time.Time `json:"appointment_date"`
	PurchaseProbability float64   `json:"purchase_probability"`
	PredictedSpend      float64   `json:"predicted_spend"`
}

// PastView is a completed appointment. Backfilled is true when PredictedSpend
// was computed on read because the stored row has none.
type PastView struct {
	ID int64 `json:"id"`
	models.Attributes
	AppointmentDate time.Time `json:"appointment_date"`
	AmountSpent     float64   `json:"amount_spent"`
	PredictedSpend  float64   `json:"predicted_spend"`
	Backfilled      bool      `json:"backfilled"`
}

// Reader serves tenant-scoped reads and aggregates. Every query filters on
// the tenant.
type Reader struct {
	db     *gorm.DB
	scorer scoring.Predictor
	log    *zap.Logger
}

// NewReader builds a Reader. scorer is only used to backfill past records
// stored without a predicted spend and may be nil.
func NewReader(db *gorm.DB, scorer scoring.Predictor, log *zap.Logger) *Reader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reader{db: db, scorer: scorer, log: log}
}

// WeeklyForecast returns ForecastWeeks contiguous 7-day buckets anchored at
// startDate (YYYY-MM-DD). Each bucket sums the predicted spend of the
// tenant's upcoming patients whose appointment falls inside it.
func (r *Reader) WeeklyForecast(ctx context.Context, tenantID uint, startDate string) ([]WeekBucket, error) {
	start, err := parseDate("start_date", startDate)
	if err != nil {
		return nil, err
	}
	end := start.Add(ForecastWeeks * week)

	patients, err := r.upcoming(ctx, tenantID, start, end)
	if err != nil {
		return nil, err
	}

	buckets := make([]WeekBucket, ForecastWeeks)
	for i := range buckets {
		from := start.Add(time.Duration(i) * week)
		buckets[i] = WeekBucket{
			Date:    from.Format(dateLayout),
			EndDate: from.Add(week).Format(dateLayout),
		}
	}
	for _, p := range patients {
		i := int(p.AppointmentDate.UTC().Sub(start) / week)
		if i < 0 || i >= ForecastWeeks {
			continue
		}
		buckets[i].PatientCount++
		buckets[i].TotalPredicted += predictedSpend(p)
	}
	return buckets, nil
}

// MonthlyComparison compares the predicted spend of upcoming patients with
// the actual spend of past appointments in month (YYYY-MM). Variance is
// actual minus predicted; a month with no rows on either side counts as 0.
// The totals need no scorer, so the report is served in degraded mode too.
func (r *Reader) MonthlyComparison(ctx context.Context, tenantID uint, month string) (MonthlyComparison, error) {
	start, err := time.Parse(monthLayout, month)
	if err != nil {
		return MonthlyComparison{}, &InvalidDateRangeError{Field: "month", Value: month, Err: err}
	}
	end := start.AddDate(0, 1, 0)

	patients, err := r.upcoming(ctx, tenantID, start, end)
	if err != nil {
		return MonthlyComparison{}, err
	}
	past, err := r.past(ctx, tenantID, start, end)
	if err != nil {
		return MonthlyComparison{}, err
	}
	views, unscored, err := r.pastViews(ctx, past, true)
	if err != nil {
		return MonthlyComparison{}, err
	}
	if unscored > 0 {
		logger.WithContext(ctx, r.log).Warn("past predictions unavailable for monthly comparison",
			zap.String("month", month), zap.Int("unscored", unscored))
	}

	c := MonthlyComparison{
		Month:                 start.Format(monthLayout),
		TotalPredicted:        lo.SumBy(patients, predictedSpend),
		TotalActual:           lo.SumBy(views, func(v PastView) float64 { return v.AmountSpent }),
		PastPredictedTotal:    lo.SumBy(views, func(v PastView) float64 { return v.PredictedSpend }),
		PastPredictedComplete: unscored == 0,
		UpcomingCount:         len(patients),
		PastCount:             len(views),
	}
	c.Variance = c.TotalActual - c.TotalPredicted
	return c, nil
}

// AllPatients lists every upcoming patient of the tenant.
func (r *Reader) AllPatients(ctx context.Context, tenantID uint) ([]PatientView, error) {
	var patients []models.Patient
	err := r.db.WithContext(ctx).
		Preload("Prediction").
		Where("tenant_id = ?", tenantID).
		Order("appointment_date, external_patient_id").
		Find(&patients).Error
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return lo.Map(patients, toPatientView), nil
}

// PatientsByDate lists the tenant's upcoming patients booked on date (YYYY-MM-DD).
func (r *Reader) PatientsByDate(ctx context.Context, tenantID uint, date string) ([]PatientView, error) {
	day, err := parseDate("date", date)
	if err != nil {
		return nil, err
	}
	patients, err := r.upcoming(ctx, tenantID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	return lo.Map(patients, toPatientView), nil
}

// PastByDate lists the tenant's past appointments on date (YYYY-MM-DD).
// Rows stored without a predicted spend are scored on read; the result is
// not written back.
func (r *Reader) PastByDate(ctx context.Context, tenantID uint, date string) ([]PastView, error) {
	day, err := parseDate("date", date)
	if err != nil {
		return nil, err
	}
	past, err := r.past(ctx, tenantID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	views, _, err := r.pastViews(ctx, past, false)
	return views, err
}

func (r *Reader) upcoming(ctx context.Context, tenantID uint, from, to time.Time) ([]models.Patient, error) {
	var patients []models.Patient
	err := r.db.WithContext(ctx).
		Preload("Prediction").
		Where("tenant_id = ? AND appointment_date >= ? AND appointment_date < ?", tenantID, from, to).
		Order("appointment_date, external_patient_id").
		Find(&patients).Error
	if err != nil {
		return nil, fmt.Errorf("query upcoming patients: %w", err)
	}
	return patients, nil
}

func (r *Reader) past(ctx context.Context, tenantID uint, from, to time.Time) ([]models.PastAppointment, error) {
	var records []models.PastAppointment
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND appointment_date >= ? AND appointment_date < ?", tenantID, from, to).
		Order("appointment_date, id").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query past appointments: %w", err)
	}
	return records, nil
}

// pastViews converts records, backfilling missing predictions. With partial
// set, rows that cannot be scored for lack of a model keep a zero
// PredictedSpend and are counted in unscored instead of failing the read.
func (r *Reader) pastViews(ctx context.Context, records []models.PastAppointment, partial bool) ([]PastView, int, error) {
	views := make([]PastView, 0, len(records))
	backfilled, unscored := 0, 0
	for _, rec := range records {
		v := PastView{
			ID:              rec.ExternalPatientID,
			Attributes:      rec.Attributes,
			AppointmentDate: rec.AppointmentDate.UTC(),
			AmountSpent:     rec.AmountSpent,
		}
		if rec.PredictedSpend != nil {
			v.PredictedSpend = *rec.PredictedSpend
		} else {
			spend, err := r.backfill(rec.Attributes)
			switch {
			case err == nil:
				v.PredictedSpend = spend
				v.Backfilled = true
				backfilled++
			case partial && errors.Is(err, scoring.ErrModelUnavailable):
				unscored++
			default:
				return nil, 0, err
			}
		}
		views = append(views, v)
	}
	if backfilled > 0 {
		logger.WithContext(ctx, r.log).Debug("backfilled past predictions", zap.Int("count", backfilled))
	}
	return views, unscored, nil
}

func (r *Reader) backfill(attrs models.Attributes) (float64, error) {
	if !scoring.Available(r.scorer) {
		return 0, scoring.ErrModelUnavailable
	}
	res, err := r.scorer.Score(scoring.Encode(attrs.Scoring()))
	if err != nil {
		return 0, err
	}
	return res.PredictedSpend, nil
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, &InvalidDateRangeError{Field: field, Value: value, Err: err}
	}
	return t, nil
}

func predictedSpend(p models.Patient) float64 {
	if p.Prediction == nil {
		return 0
	}
	return p.Prediction.PredictedSpend
}

func toPatientView(p models.Patient, _ int) PatientView {
	v := PatientView{
		ID:              p.ExternalPatientID,
		Attributes:      p.Attributes,
		AppointmentDate: p.AppointmentDate.UTC(),
	}
	if p.Prediction != nil {
		v.PurchaseProbability = p.Prediction.PurchaseProbability
		v.PredictedSpend = p.Prediction.PredictedSpend
	}
	return v
}
