package services

import (
	"fmt"
	"time"

	"dogschool-platform/models"

	"gorm.io/gorm"
)

// BookingService runs the appointment capacity state machine: book,
// cancel with waitlist promotion, attendance, and appointment billing.
//
// Every mutating operation locks the appointment row first, so two
// concurrent bookings cannot both observe free capacity and the
// double-billing check cannot race with itself.
type BookingService struct {
	DB           *gorm.DB
	Config       *TenantConfigService
	Achievements *AchievementService
	Notifier     Notifier
}

func NewBookingService(db *gorm.DB, config *TenantConfigService, achievements *AchievementService, notifier Notifier) *BookingService {
	return &BookingService{DB: db, Config: config, Achievements: achievements, Notifier: notifier}
}

// Book places a user on an appointment: confirmed while capacity remains,
// waitlist once it is full. A cancelled row is reactivated in place and
// rejoins the waitlist FIFO at the back; an active booking is a conflict.
func (s *BookingService) Book(tenantID, appointmentID, userID uint, dogID *uint) (*models.Booking, error) {
	var booking *models.Booking
	var appointment *models.Appointment

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		appointment, err = getAppointment(tx, tenantID, appointmentID, true)
		if err != nil {
			return err
		}
		if _, err := getUser(tx, tenantID, userID, false); err != nil {
			return err
		}

		var existing models.Booking
		err = tx.Where("appointment_id = ? AND user_id = ?", appointmentID, userID).First(&existing).Error
		if err != nil && err != gorm.ErrRecordNotFound {
			return err
		}
		if err == nil && existing.Status != models.BookingStatusCancelled {
			return fmt.Errorf("booking already exists with status %s: %w", existing.Status, ErrConflict)
		}

		var confirmed int64
		if err := tx.Model(&models.Booking{}).
			Where("appointment_id = ? AND status = ?", appointmentID, models.BookingStatusConfirmed).
			Count(&confirmed).Error; err != nil {
			return err
		}

		status := models.BookingStatusConfirmed
		if confirmed >= int64(appointment.MaxParticipants) {
			status = models.BookingStatusWaitlist
		}

		if existing.ID != 0 {
			// Re-book: reuse the cancelled row, fresh capacity decision,
			// fresh FIFO position.
			updates := map[string]interface{}{
				"status":     status,
				"attended":   false,
				"dog_id":     dogID,
				"created_at": time.Now(),
			}
			if err := tx.Model(&existing).Updates(updates).Error; err != nil {
				return err
			}
			booking = &existing
			booking.Status = status
			booking.Attended = false
			booking.DogID = dogID
			return nil
		}

		booking = &models.Booking{
			TenantID:      tenantID,
			AppointmentID: appointmentID,
			UserID:        userID,
			Status:        status,
			DogID:         dogID,
		}
		return tx.Create(booking).Error
	})
	if err != nil {
		return nil, err
	}

	title := "Buchung bestätigt"
	message := fmt.Sprintf("Du bist für %q angemeldet.", appointment.Title)
	if booking.Status == models.BookingStatusWaitlist {
		title = "Auf der Warteliste"
		message = fmt.Sprintf("%q ist ausgebucht. Du stehst auf der Warteliste.", appointment.Title)
	}
	s.Notifier.Notify(tenantID, userID, NotifyCategoryBooking, title, message,
		fmt.Sprintf("/appointments/%d", appointmentID), nil)

	return booking, nil
}

// Cancel moves a booking to cancelled and, when a confirmed slot was freed,
// promotes the oldest waitlisted booking of the appointment. Cancelling a
// waitlist booking promotes nobody. Attendance is reset so a later re-book
// starts clean.
func (s *BookingService) Cancel(tenantID, appointmentID, userID uint) (*models.Booking, *models.Booking, error) {
	var cancelled *models.Booking
	var promoted *models.Booking
	var appointment *models.Appointment

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		appointment, err = getAppointment(tx, tenantID, appointmentID, true)
		if err != nil {
			return err
		}

		var booking models.Booking
		err = tx.Where("appointment_id = ? AND user_id = ? AND tenant_id = ?", appointmentID, userID, tenantID).
			First(&booking).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("booking: %w", ErrNotFound)
			}
			return err
		}
		if booking.Status == models.BookingStatusCancelled {
			return fmt.Errorf("booking already cancelled: %w", ErrConflict)
		}
		wasConfirmed := booking.Status == models.BookingStatusConfirmed

		updates := map[string]interface{}{
			"status":   models.BookingStatusCancelled,
			"attended": false,
		}
		if err := tx.Model(&booking).Updates(updates).Error; err != nil {
			return err
		}
		booking.Status = models.BookingStatusCancelled
		booking.Attended = false
		cancelled = &booking

		if !wasConfirmed {
			return nil
		}

		// FIFO by creation time, nothing else.
		var next models.Booking
		err = tx.Where("appointment_id = ? AND status = ?", appointmentID, models.BookingStatusWaitlist).
			Order("created_at ASC, id ASC").
			First(&next).Error
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Model(&next).Update("status", models.BookingStatusConfirmed).Error; err != nil {
			return err
		}
		next.Status = models.BookingStatusConfirmed
		promoted = &next
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if promoted != nil {
		s.Notifier.Notify(tenantID, promoted.UserID, NotifyCategoryBooking,
			"Platz frei geworden",
			fmt.Sprintf("Du bist von der Warteliste nachgerückt und für %q bestätigt.", appointment.Title),
			fmt.Sprintf("/appointments/%d", appointmentID), nil)
	}
	return cancelled, promoted, nil
}

// ToggleAttendance flips the attended flag. No side effects.
func (s *BookingService) ToggleAttendance(tenantID, bookingID uint) (*models.Booking, error) {
	var booking models.Booking
	err := s.DB.Where("id = ? AND tenant_id = ?", bookingID, tenantID).First(&booking).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("booking %d: %w", bookingID, ErrNotFound)
		}
		return nil, err
	}
	booking.Attended = !booking.Attended
	if err := s.DB.Model(&booking).Update("attended", booking.Attended).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

// Participants lists the bookings of an appointment with their users,
// confirmed first, then waitlist in FIFO order.
func (s *BookingService) Participants(tenantID, appointmentID uint) ([]models.Booking, error) {
	if _, err := getAppointment(s.DB, tenantID, appointmentID, false); err != nil {
		return nil, err
	}
	var bookings []models.Booking
	err := s.DB.Where("appointment_id = ? AND tenant_id = ?", appointmentID, tenantID).
		Preload("User").
		Order("status ASC, created_at ASC").
		Find(&bookings).Error
	return bookings, err
}

// BillBooking charges one booking against the user's prepaid balance.
// Idempotent per (user, appointment): the deterministic transaction
// description is the key, repeats are conflicts. When the tenant runs with
// auto-progress, the matching achievement is granted in the same database
// transaction, dated to the appointment start.
func (s *BookingService) BillBooking(tenantID, bookingID, bookedByID uint) (*models.Transaction, error) {
	cfg, err := s.Config.GetConfig(tenantID)
	if err != nil {
		return nil, err
	}

	var txn *models.Transaction
	var booking models.Booking

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND tenant_id = ?", bookingID, tenantID).First(&booking).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("booking %d: %w", bookingID, ErrNotFound)
			}
			return err
		}
		var err error
		txn, err = s.billBookingTx(tx, cfg, &booking, bookedByID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.Notify(tenantID, booking.UserID, NotifyCategoryBilling,
		"Leistung abgerechnet", txn.Description, "/balance",
		map[string]string{"amount": fmt.Sprintf("%.2f", txn.Amount)})
	return txn, nil
}

// billBookingTx is the single-booking billing step shared by BillBooking
// and the batch/auto-billing paths. Caller owns the transaction.
func (s *BookingService) billBookingTx(tx *gorm.DB, cfg models.TenantConfig, booking *models.Booking, bookedByID uint) (*models.Transaction, error) {
	appointment, err := getAppointment(tx, booking.TenantID, booking.AppointmentID, true)
	if err != nil {
		return nil, err
	}
	if appointment.TrainingTypeID == nil {
		return nil, fmt.Errorf("appointment %d has no training type: %w", appointment.ID, ErrInvalidConfiguration)
	}

	var trainingType models.TrainingType
	if err := tx.Where("id = ? AND tenant_id = ?", *appointment.TrainingTypeID, booking.TenantID).
		First(&trainingType).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("training type %d: %w", *appointment.TrainingTypeID, ErrNotFound)
		}
		return nil, err
	}

	price := trainingType.DefaultPrice
	if appointment.Price != nil {
		price = *appointment.Price
	}

	description := models.BillingDescription(appointment.Title)
	var billedCount int64
	err = tx.Model(&models.Transaction{}).
		Where("tenant_id = ? AND user_id = ? AND description = ?", booking.TenantID, booking.UserID, description).
		Count(&billedCount).Error
	if err != nil {
		return nil, err
	}
	if billedCount > 0 {
		return nil, fmt.Errorf("appointment already billed for this user: %w", ErrConflict)
	}

	user, err := getUser(tx, booking.TenantID, booking.UserID, true)
	if err != nil {
		return nil, err
	}
	if user.Balance < price {
		return nil, fmt.Errorf("balance %.2f below price %.2f: %w", user.Balance, price, ErrInsufficientFunds)
	}

	user.Balance -= price
	if err := tx.Model(user).Update("balance", user.Balance).Error; err != nil {
		return nil, err
	}

	if bookedByID == 0 {
		bookedByID = user.ID
	}
	txn := models.Transaction{
		TenantID:       booking.TenantID,
		UserID:         user.ID,
		BookedByID:     bookedByID,
		Type:           trainingType.Name,
		Description:    description,
		Amount:         -price,
		BalanceAfter:   user.Balance,
		TrainingTypeID: appointment.TrainingTypeID,
	}
	if err := tx.Create(&txn).Error; err != nil {
		return nil, err
	}

	if err := tx.Model(booking).Update("is_billed", true).Error; err != nil {
		return nil, err
	}
	booking.IsBilled = true

	if cfg.AutoProgressEnabled {
		_, _, err := s.Achievements.CreateUnlessDuplicate(tx, booking.TenantID, CreateAchievementInput{
			UserID:         user.ID,
			TrainingTypeID: trainingType.ID,
			DogID:          booking.DogID,
			TransactionID:  &txn.ID,
			Date:           appointment.StartTime,
		})
		if err != nil {
			return nil, err
		}
	}
	return &txn, nil
}

// BatchResult reports the outcome for one booking of a batch operation.
// Per-item failures are expected (empty balances, already billed) and must
// not abort the rest of the batch.
type BatchResult struct {
	BookingID uint   `json:"booking_id"`
	UserID    uint   `json:"user_id"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

// attendedConfirmed returns the bookings of an appointment that are both
// confirmed and attended, the population every batch operation works on.
func (s *BookingService) attendedConfirmed(tenantID, appointmentID uint) ([]models.Booking, error) {
	if _, err := getAppointment(s.DB, tenantID, appointmentID, false); err != nil {
		return nil, err
	}
	var bookings []models.Booking
	err := s.DB.Where("appointment_id = ? AND tenant_id = ? AND status = ? AND attended = ?",
		appointmentID, tenantID, models.BookingStatusConfirmed, true).
		Order("created_at ASC").
		Find(&bookings).Error
	return bookings, err
}

// BillAllParticipants bills every confirmed+attended booking of an
// appointment. Each booking gets its own database transaction so one
// failure never rolls back a neighbour's debit.
func (s *BookingService) BillAllParticipants(tenantID, appointmentID, bookedByID uint) ([]BatchResult, error) {
	cfg, err := s.Config.GetConfig(tenantID)
	if err != nil {
		return nil, err
	}
	bookings, err := s.attendedConfirmed(tenantID, appointmentID)
	if err != nil {
		return nil, err
	}

	results := make([]BatchResult, 0, len(bookings))
	for i := range bookings {
		booking := bookings[i]
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			_, err := s.billBookingTx(tx, cfg, &booking, bookedByID)
			return err
		})
		result := BatchResult{BookingID: booking.ID, UserID: booking.UserID, OK: err == nil}
		if err != nil {
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return results, nil
}

// GrantAllProgress grants the appointment's achievement to every
// confirmed+attended booking without touching balances. Duplicates (same
// user, type and date) are skipped, not errors.
func (s *BookingService) GrantAllProgress(tenantID, appointmentID uint) ([]BatchResult, error) {
	var appointment *models.Appointment
	appointment, err := getAppointment(s.DB, tenantID, appointmentID, false)
	if err != nil {
		return nil, err
	}
	if appointment.TrainingTypeID == nil {
		return nil, fmt.Errorf("appointment %d has no training type: %w", appointment.ID, ErrInvalidConfiguration)
	}

	bookings, err := s.attendedConfirmed(tenantID, appointmentID)
	if err != nil {
		return nil, err
	}

	results := make([]BatchResult, 0, len(bookings))
	for i := range bookings {
		booking := bookings[i]
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			_, _, err := s.Achievements.CreateUnlessDuplicate(tx, tenantID, CreateAchievementInput{
				UserID:         booking.UserID,
				TrainingTypeID: *appointment.TrainingTypeID,
				DogID:          booking.DogID,
				Date:           appointment.StartTime,
			})
			return err
		})
		result := BatchResult{BookingID: booking.ID, UserID: booking.UserID, OK: err == nil}
		if err != nil {
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return results, nil
}
