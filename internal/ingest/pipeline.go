package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/simon-dulai/optometry-purchase-predictor/internal/events"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/logger"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/metrics"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/models"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/scoring"
)

// DuplicatePolicy controls what an insert does when the row collides with a
// unique index.
type DuplicatePolicy int

const (
	// SkipDuplicates silently ignores rows that already exist.
	SkipDuplicates DuplicatePolicy = iota
	// AllowDuplicates inserts every row. Tables without a unique key only.
	AllowDuplicates
)

func (p DuplicatePolicy) String() string {
	switch p {
	case SkipDuplicates:
		return "skip"
	case AllowDuplicates:
		return "allow"
	default:
		return fmt.Sprintf("DuplicatePolicy(%d)", int(p))
	}
}

// UpcomingResult is returned from IngestUpcoming.
type UpcomingResult struct {
	PatientsCreated    int `json:"patients_created"`
	PredictionsCreated int `json:"predictions_created"`
}

// PastResult is returned from IngestPast.
type PastResult struct {
	RecordsCreated int `json:"records_created"`
}

// Options configures a Pipeline. DB is required; everything else is optional.
type Options struct {
	DB      *gorm.DB
	Scorer  scoring.Predictor
	Metrics *metrics.Metrics
	Log     *zap.Logger
	Events  events.Publisher
}

// Pipeline turns uploaded CSVs into persisted, scored rows.
type Pipeline struct {
	db      *gorm.DB
	scorer  scoring.Predictor
	metrics *metrics.Metrics
	log     *zap.Logger
	events  events.Publisher
	now     func() time.Time
}

// NewPipeline builds a Pipeline.
func NewPipeline(opts Options) *Pipeline {
	p := &Pipeline{
		db:      opts.DB,
		scorer:  opts.Scorer,
		metrics: opts.Metrics,
		log:     opts.Log,
		events:  opts.Events,
		now:     time.Now,
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	if p.events == nil {
		p.events = events.NopPublisher{}
	}
	return p
}

// IngestUpcoming parses an upcoming-appointments CSV and stores every new
// patient together with its prediction. Patients already known to the tenant
// are skipped, so uploading the same file twice creates nothing the second
// time. The batch is all-or-nothing.
func (p *Pipeline) IngestUpcoming(ctx context.Context, tenantID uint, r io.Reader) (UpcomingResult, error) {
	var result UpcomingResult
	log := logger.WithContext(ctx, p.log).With(zap.Uint("tenant_id", tenantID), zap.String("kind", metrics.KindUpcoming))

	rows, err := ParseUpcoming(r)
	if err != nil {
		return result, p.fail(log, metrics.KindUpcoming, err)
	}
	if err := p.checkScorer(); err != nil {
		return result, p.fail(log, metrics.KindUpcoming, err)
	}

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			patient := models.Patient{
				TenantID:          tenantID,
				ExternalPatientID: row.ExternalPatientID,
				Attributes:        row.Attributes,
				AppointmentDate:   row.AppointmentDate,
			}
			created, err := insertRecord(tx, &patient, SkipDuplicates)
			if err != nil {
				return fmt.Errorf("insert patient %d (line %d): %w", row.ExternalPatientID, row.Line, err)
			}
			if !created {
				continue
			}
			result.PatientsCreated++

			score, err := p.score(row.Attributes)
			if err != nil {
				return err
			}
			prediction := models.Prediction{
				PatientID:           patient.ID,
				PurchaseProbability: score.PurchaseProbability,
				PredictedSpend:      score.PredictedSpend,
			}
			if _, err := insertRecord(tx, &prediction, AllowDuplicates); err != nil {
				return fmt.Errorf("insert prediction for patient %d: %w", row.ExternalPatientID, err)
			}
			result.PredictionsCreated++
		}
		return nil
	})
	if err != nil {
		return UpcomingResult{}, p.fail(log, metrics.KindUpcoming, err)
	}

	skipped := len(rows) - result.PatientsCreated
	p.metrics.Batch(metrics.KindUpcoming, metrics.OutcomeOK)
	p.metrics.Rows(metrics.KindUpcoming, metrics.RowCreated, result.PatientsCreated)
	p.metrics.Rows(metrics.KindUpcoming, metrics.RowSkipped, skipped)
	log.Info("upload ingested",
		zap.Int("rows", len(rows)),
		zap.Int("patients_created", result.PatientsCreated),
		zap.Int("predictions_created", result.PredictionsCreated),
		zap.Int("skipped", skipped),
	)

	p.publish(ctx, log, events.Event{
		Type:               events.TypeUpcomingIngested,
		TenantID:           tenantID,
		PatientsCreated:    result.PatientsCreated,
		PredictionsCreated: result.PredictionsCreated,
		At:                 p.now().UTC(),
	})
	return result, nil
}

// IngestPast parses a past-appointments CSV and stores every row with its
// predicted spend. Past records are never deduplicated: uploading the same
// file twice stores every row twice.
func (p *Pipeline) IngestPast(ctx context.Context, tenantID uint, r io.Reader) (PastResult, error) {
	var result PastResult
	log := logger.WithContext(ctx, p.log).With(zap.Uint("tenant_id", tenantID), zap.String("kind", metrics.KindPast))

	rows, err := ParsePast(r)
	if err != nil {
		return result, p.fail(log, metrics.KindPast, err)
	}
	if err := p.checkScorer(); err != nil {
		return result, p.fail(log, metrics.KindPast, err)
	}

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			score, err := p.score(row.Attributes)
			if err != nil {
				return err
			}
			spend := score.PredictedSpend
			record := models.PastAppointment{
				TenantID:          tenantID,
				ExternalPatientID: row.ExternalPatientID,
				Attributes:        row.Attributes,
				AppointmentDate:   row.AppointmentDate,
				AmountSpent:       row.AmountSpent,
				PredictedSpend:    &spend,
			}
			if _, err := insertRecord(tx, &record, AllowDuplicates); err != nil {
				return fmt.Errorf("insert past appointment %d (line %d): %w", row.ExternalPatientID, row.Line, err)
			}
			result.RecordsCreated++
		}
		return nil
	})
	if err != nil {
		return PastResult{}, p.fail(log, metrics.KindPast, err)
	}

	p.metrics.Batch(metrics.KindPast, metrics.OutcomeOK)
	p.metrics.Rows(metrics.KindPast, metrics.RowCreated, result.RecordsCreated)
	log.Info("upload ingested",
		zap.Int("rows", len(rows)),
		zap.Int("records_created", result.RecordsCreated),
	)

	p.publish(ctx, log, events.Event{
		Type:           events.TypePastIngested,
		TenantID:       tenantID,
		RecordsCreated: result.RecordsCreated,
		At:             p.now().UTC(),
	})
	return result, nil
}

// insertRecord inserts rec under policy and reports whether a row was written.
func insertRecord(tx *gorm.DB, rec any, policy DuplicatePolicy) (bool, error) {
	q := tx
	switch policy {
	case SkipDuplicates:
		q = tx.Clauses(clause.OnConflict{DoNothing: true})
	case AllowDuplicates:
	default:
		return false, fmt.Errorf("unknown duplicate policy %s", policy)
	}

	res := q.Create(rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (p *Pipeline) checkScorer() error {
	if !scoring.Available(p.scorer) {
		return scoring.ErrModelUnavailable
	}
	return nil
}

func (p *Pipeline) score(attrs models.Attributes) (scoring.Result, error) {
	start := time.Now()
	res, err := p.scorer.Score(scoring.Encode(attrs.Scoring()))
	p.metrics.ObserveScoring(start)
	return res, err
}

func (p *Pipeline) fail(log *zap.Logger, kind string, err error) error {
	var malformed *MalformedRowError
	switch {
	case errors.As(err, &malformed), errors.Is(err, ErrEmptyUpload):
		p.metrics.Batch(kind, metrics.OutcomeMalformed)
		log.Info("upload rejected", zap.Error(err))
	case errors.Is(err, scoring.ErrModelUnavailable):
		p.metrics.Batch(kind, metrics.OutcomeModelUnavailable)
		log.Warn("upload rejected, scorer unavailable")
	default:
		p.metrics.Batch(kind, metrics.OutcomeError)
		log.Error("upload failed", zap.Error(err))
	}
	return err
}

func (p *Pipeline) publish(ctx context.Context, log *zap.Logger, e events.Event) {
	if err := p.events.Publish(ctx, e); err != nil {
		log.Warn("publish ingestion event failed", zap.String("type", e.Type), zap.Error(err))
	}
}
