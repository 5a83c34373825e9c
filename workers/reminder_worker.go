package workers

import (
	"fmt"
	"log"
	"time"

	"dogschool-platform/models"
	"dogschool-platform/services"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// ReminderWorker sends one reminder per confirmed booking shortly before the
// appointment starts. Each user picks their own lead time; ReminderSentAt
// makes the scan idempotent across ticks and restarts.
type ReminderWorker struct {
	DB       *gorm.DB
	Notifier services.Notifier
}

func NewReminderWorker(db *gorm.DB, notifier services.Notifier) *ReminderWorker {
	return &ReminderWorker{DB: db, Notifier: notifier}
}

// Start registers the scan on the shared scheduler.
func (w *ReminderWorker) Start(sched gocron.Scheduler) error {
	_, err := sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(w.RunOnce),
	)
	return err
}

// RunOnce scans for bookings whose reminder window has opened. Exported so
// the scan is callable outside the scheduler.
func (w *ReminderWorker) RunOnce() {
	now := time.Now()

	type dueBooking struct {
		BookingID       uint
		TenantID        uint
		UserID          uint
		Title           string
		StartTime       time.Time
		AppointmentID   uint
		ReminderMinutes int
	}
	var due []dueBooking
	err := w.DB.Model(&models.Booking{}).
		Select(`bookings.id AS booking_id, bookings.tenant_id, bookings.user_id,
			appointments.title, appointments.start_time, appointments.id AS appointment_id,
			users.reminder_offset_minutes AS reminder_minutes`).
		Joins("JOIN appointments ON appointments.id = bookings.appointment_id").
		Joins("JOIN users ON users.id = bookings.user_id").
		Where("bookings.status = ? AND bookings.reminder_sent_at IS NULL", models.BookingStatusConfirmed).
		Where("appointments.start_time > ?", now).
		Where("users.notifications_push = ? OR users.notifications_email = ?", true, true).
		Scan(&due).Error
	if err != nil {
		log.Printf("[Reminder] DB error: %v", err)
		return
	}

	sent := 0
	for _, b := range due {
		window := time.Duration(b.ReminderMinutes) * time.Minute
		if now.Before(b.StartTime.Add(-window)) {
			continue
		}

		// Mark first. Losing one reminder beats sending it twice.
		res := w.DB.Model(&models.Booking{}).
			Where("id = ? AND reminder_sent_at IS NULL", b.BookingID).
			Update("reminder_sent_at", now)
		if res.Error != nil {
			log.Printf("[Reminder] failed to mark booking %d: %v", b.BookingID, res.Error)
			continue
		}
		if res.RowsAffected == 0 {
			continue
		}

		w.Notifier.Notify(b.TenantID, b.UserID, services.NotifyCategoryReminder,
			"Terminerinnerung",
			fmt.Sprintf("%q beginnt um %s.", b.Title, b.StartTime.Format("15:04")),
			fmt.Sprintf("/appointments/%d", b.AppointmentID), nil)
		sent++
	}
	if sent > 0 {
		log.Printf("📣 [Reminder] sent %d reminder(s)", sent)
	}
}
