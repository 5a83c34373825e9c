package workers

import (
	"log"
	"time"

	"dogschool-platform/models"
	"dogschool-platform/services"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// AutoBillingWorker sweeps ended appointments of tenants that opted into
// automatic billing and bills every attended booking that has not been
// billed yet. It goes through the same billing path as the manual endpoint,
// so the idempotency rule and the balance checks are identical.
type AutoBillingWorker struct {
	DB       *gorm.DB
	Config   *services.TenantConfigService
	Bookings *services.BookingService
}

func NewAutoBillingWorker(db *gorm.DB, config *services.TenantConfigService, bookings *services.BookingService) *AutoBillingWorker {
	return &AutoBillingWorker{DB: db, Config: config, Bookings: bookings}
}

func (w *AutoBillingWorker) Start(sched gocron.Scheduler) error {
	_, err := sched.NewJob(
		gocron.DurationJob(15*time.Minute),
		gocron.NewTask(w.RunOnce),
	)
	return err
}

func (w *AutoBillingWorker) RunOnce() {
	var tenants []models.Tenant
	if err := w.DB.Where("is_active = ?", true).Find(&tenants).Error; err != nil {
		log.Printf("[AutoBilling] DB error: %v", err)
		return
	}

	for _, tenant := range tenants {
		cfg, err := w.Config.GetConfig(tenant.ID)
		if err != nil {
			log.Printf("[AutoBilling] config for tenant %d: %v", tenant.ID, err)
			continue
		}
		if !cfg.AutoBillingEnabled {
			continue
		}
		w.sweepTenant(tenant.ID)
	}
}

// sweepTenant bills ended appointments of one tenant. Only appointments
// with a training type qualify; one without can never be billed anyway.
func (w *AutoBillingWorker) sweepTenant(tenantID uint) {
	cutoff := time.Now()
	lookback := cutoff.Add(-7 * 24 * time.Hour)

	var appointmentIDs []uint
	err := w.DB.Model(&models.Appointment{}).
		Where("tenant_id = ? AND end_time <= ? AND end_time > ? AND training_type_id IS NOT NULL",
			tenantID, cutoff, lookback).
		Pluck("id", &appointmentIDs).Error
	if err != nil {
		log.Printf("[AutoBilling] tenant %d: %v", tenantID, err)
		return
	}

	for _, appointmentID := range appointmentIDs {
		var unbilled int64
		err := w.DB.Model(&models.Booking{}).
			Where("appointment_id = ? AND status = ? AND attended = ? AND is_billed = ?",
				appointmentID, models.BookingStatusConfirmed, true, false).
			Count(&unbilled).Error
		if err != nil || unbilled == 0 {
			continue
		}

		// BookedByID 0 falls back to the customer: nobody pressed a button.
		results, err := w.Bookings.BillAllParticipants(tenantID, appointmentID, 0)
		if err != nil {
			log.Printf("[AutoBilling] appointment %d: %v", appointmentID, err)
			continue
		}
		billed := 0
		for _, r := range results {
			if r.OK {
				billed++
			}
		}
		if billed > 0 {
			log.Printf("💶 [AutoBilling] tenant %d appointment %d: billed %d booking(s)", tenantID, appointmentID, billed)
		}
	}
}
