package models

import (
	"context"

	"gorm.io/gorm"
)

// ClearResult reports how many rows were removed for a tenant.
type ClearResult struct {
	PatientsDeleted         int64 `json:"patients_deleted"`
	PredictionsDeleted      int64 `json:"predictions_deleted"`
	PastAppointmentsDeleted int64 `json:"past_appointments_deleted"`
}

// ClearTenantData deletes every patient, prediction and past appointment owned
// by tenantID in one transaction. Predictions are removed explicitly so the
// cascade does not depend on the driver enforcing foreign keys.
func ClearTenantData(ctx context.Context, db *gorm.DB, tenantID uint) (ClearResult, error) {
	var res ClearResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		patientIDs := tx.Model(&Patient{}).Select("id").Where("tenant_id = ?", tenantID)

		q := tx.Where("patient_id IN (?)", patientIDs).Delete(&Prediction{})
		if q.Error != nil {
			return q.Error
		}
		res.PredictionsDeleted = q.RowsAffected

		q = tx.Where("tenant_id = ?", tenantID).Delete(&Patient{})
		if q.Error != nil {
			return q.Error
		}
		res.PatientsDeleted = q.RowsAffected

		q = tx.Where("tenant_id = ?", tenantID).Delete(&PastAppointment{})
		if q.Error != nil {
			return q.Error
		}
		res.PastAppointmentsDeleted = q.RowsAffected
		return nil
	})
	return res, err
}

// DeleteTenant removes the user account and all of its data.
func DeleteTenant(ctx context.Context, db *gorm.DB, tenantID uint) (ClearResult, error) {
	var res ClearResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = ClearTenantData(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		q := tx.Delete(&User{}, tenantID)
		if q.Error != nil {
			return q.Error
		}
		if q.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return res, err
}
