package models

import (
	"time"

	"github.com/simon-dulai/optometry-purchase-predictor/internal/scoring"
)

// Attributes are the patient columns shared by upcoming and past appointments.
// Everything a prediction is computed from lives here, so any stored score can
// be recomputed from its row.
type Attributes struct {
	Age       int  `gorm:"not null" json:"age"`
	DaysLPS   int  `gorm:"column:days_lps;not null" json:"days_lps"`
	Employed  bool `gorm:"not null" json:"employed"`
	Benefits  bool `gorm:"not null" json:"benefits"`
	Driver    bool `gorm:"not null" json:"driver"`
	VDU       bool `gorm:"column:vdu;not null" json:"vdu"`
	Varifocal bool `gorm:"not null" json:"varifocal"`
	HighRx    bool `gorm:"column:high_rx;not null" json:"high_rx"`
}

// Scoring converts the stored columns to scoring attributes.
func (a Attributes) Scoring() scoring.Attributes {
	return scoring.Attributes{
		Age:                   a.Age,
		DaysSinceLastPurchase: a.DaysLPS,
		Employed:              a.Employed,
		OnBenefits:            a.Benefits,
		Driver:                a.Driver,
		VDUUser:               a.VDU,
		Varifocal:             a.Varifocal,
		HighPrescription:      a.HighRx,
	}
}

// Patient is an upcoming appointment. (tenant_id, external_patient_id) is unique.
type Patient struct {
	BaseModel
	TenantID          uint       `gorm:"not null;uniqueIndex:idx_patients_tenant_external" json:"-"`
	ExternalPatientID int64      `gorm:"not null;uniqueIndex:idx_patients_tenant_external" json:"patient_id"`
	Attributes        Attributes `gorm:"embedded" json:"attributes"`
	AppointmentDate   time.Time  `gorm:"not null;index" json:"appointment_date"`

	Prediction *Prediction `gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE" json:"prediction,omitempty"`
}

// Prediction holds the model output for one patient.
type Prediction struct {
	BaseModel
	PatientID           uint    `gorm:"not null;uniqueIndex" json:"patient_id"`
	PurchaseProbability float64 `gorm:"not null" json:"purchase_probability"`
	PredictedSpend      float64 `gorm:"not null" json:"predicted_spend"`
}

// PastAppointment is a completed appointment with its actual spend. Rows are
// never deduplicated and do not reference Patient.
type PastAppointment struct {
	BaseModel
	TenantID          uint       `gorm:"not null;index" json:"-"`
	ExternalPatientID int64      `gorm:"not null" json:"patient_id"`
	Attributes        Attributes `gorm:"embedded" json:"attributes"`
	AppointmentDate   time.Time  `gorm:"not null;index" json:"appointment_date"`
	AmountSpent       float64    `gorm:"not null" json:"amount_spent"`

	// Nil on legacy rows written before scores were stored.
	PredictedSpend *float64 `json:"predicted_spend"`
}
