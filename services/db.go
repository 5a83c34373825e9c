package services

import (
	"fmt"

	"dogschool-platform/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lockForUpdate takes a row lock where the dialect supports it. The sqlite
// test database has no row locks; its single in-memory connection
// serializes writers anyway.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// getUser loads a tenant-scoped user, optionally locked.
func getUser(tx *gorm.DB, tenantID, userID uint, lock bool) (*models.User, error) {
	q := tx
	if lock {
		q = lockForUpdate(tx)
	}
	var user models.User
	if err := q.Where("id = ? AND tenant_id = ?", userID, tenantID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// getAppointment loads a tenant-scoped appointment. With lock=true it
// doubles as the per-appointment serialization point for every capacity and
// idempotency decision.
func getAppointment(tx *gorm.DB, tenantID, appointmentID uint, lock bool) (*models.Appointment, error) {
	q := tx
	if lock {
		q = lockForUpdate(tx)
	}
	var appointment models.Appointment
	if err := q.Where("id = ? AND tenant_id = ?", appointmentID, tenantID).First(&appointment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("appointment %d: %w", appointmentID, ErrNotFound)
		}
		return nil, err
	}
	return &appointment, nil
}
