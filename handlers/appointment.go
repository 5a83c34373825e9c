package handlers

import (
	"time"

	"dogschool-platform/middleware"
	"dogschool-platform/models"
	"dogschool-platform/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SetupAppointmentRoutes wires the calendar, bookings and appointment
// billing.
func SetupAppointmentRoutes(app *fiber.App, db *gorm.DB, bookings *services.BookingService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/appointments", func(c *fiber.Ctx) error {
		q := db.Where("tenant_id = ?", middleware.TenantID(c))
		if from := c.Query("from"); from != "" {
			t, err := time.Parse(time.RFC3339, from)
			if err != nil {
				return badRequest(c, "invalid from timestamp")
			}
			q = q.Where("start_time >= ?", t)
		}
		if to := c.Query("to"); to != "" {
			t, err := time.Parse(time.RFC3339, to)
			if err != nil {
				return badRequest(c, "invalid to timestamp")
			}
			q = q.Where("start_time < ?", t)
		}
		var appointments []models.Appointment
		if err := q.Preload("TrainingType").Order("start_time ASC").Find(&appointments).Error; err != nil {
			return fail(c, err)
		}
		for i := range appointments {
			db.Model(&models.Booking{}).
				Where("appointment_id = ? AND status = ?", appointments[i].ID, models.BookingStatusConfirmed).
				Count(&appointments[i].ConfirmedCount)
			db.Model(&models.Booking{}).
				Where("appointment_id = ? AND status = ?", appointments[i].ID, models.BookingStatusWaitlist).
				Count(&appointments[i].WaitlistCount)
		}
		return c.JSON(appointments)
	})

	secured.Get("/appointments/:id", func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid appointment id")
		}
		var appointment models.Appointment
		err = db.Where("id = ? AND tenant_id = ?", id, middleware.TenantID(c)).
			Preload("TrainingType").
			First(&appointment).Error
		if err != nil {
			return fail(c, err)
		}
		db.Model(&models.Booking{}).
			Where("appointment_id = ? AND status = ?", appointment.ID, models.BookingStatusConfirmed).
			Count(&appointment.ConfirmedCount)
		db.Model(&models.Booking{}).
			Where("appointment_id = ? AND status = ?", appointment.ID, models.BookingStatusWaitlist).
			Count(&appointment.WaitlistCount)
		return c.JSON(appointment)
	})

	// Booking and cancelling: customers act on themselves, staff may pass a
	// user_id to act for a customer.
	secured.Post("/appointments/:id/book", func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid appointment id")
		}
		type Req struct {
			UserID uint  `json:"user_id"`
			DogID  *uint `json:"dog_id"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
			return badRequest(c, "invalid booking payload")
		}
		userID := middleware.UserID(c)
		if req.UserID != 0 && req.UserID != userID {
			if middleware.Role(c) == models.RoleCustomer {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "cannot book for another user"})
			}
			userID = req.UserID
		}
		booking, err := bookings.Book(middleware.TenantID(c), id, userID, req.DogID)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(booking)
	})

	secured.Post("/appointments/:id/cancel", func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid appointment id")
		}
		type Req struct {
			UserID uint `json:"user_id"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
			return badRequest(c, "invalid cancel payload")
		}
		userID := middleware.UserID(c)
		if req.UserID != 0 && req.UserID != userID {
			if middleware.Role(c) == models.RoleCustomer {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "cannot cancel for another user"})
			}
			userID = req.UserID
		}
		cancelled, promoted, err := bookings.Cancel(middleware.TenantID(c), id, userID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{
			"cancelled": cancelled,
			"promoted":  promoted,
		})
	})

	staff := secured.Group("/", middleware.RequireRole(models.RoleAdmin, models.RoleStaff))

	type appointmentReq struct {
		Title           string    `json:"title" validate:"required"`
		Description     string    `json:"description"`
		StartTime       time.Time `json:"start_time" validate:"required"`
		EndTime         time.Time `json:"end_time" validate:"required"`
		Location        string    `json:"location"`
		MaxParticipants int       `json:"max_participants" validate:"min=0"`
		TrainerID       *uint     `json:"trainer_id"`
		TrainingTypeID  *uint     `json:"training_type_id"`
		Price           *float64  `json:"price"`
		IsOpenForAll    bool      `json:"is_open_for_all"`
	}

	applyReq := func(a *models.Appointment, req appointmentReq) {
		a.Title = req.Title
		a.Description = req.Description
		a.StartTime = req.StartTime
		a.EndTime = req.EndTime
		a.Location = req.Location
		a.MaxParticipants = req.MaxParticipants
		a.TrainerID = req.TrainerID
		a.TrainingTypeID = req.TrainingTypeID
		a.Price = req.Price
		a.IsOpenForAll = req.IsOpenForAll
	}

	staff.Post("/appointments", func(c *fiber.Ctx) error {
		var req appointmentReq
		if err := parseBody(c, &req); err != nil {
			return badRequest(c, "invalid appointment payload")
		}
		if !req.EndTime.After(req.StartTime) {
			return badRequest(c, "end_time must be after start_time")
		}
		appointment := models.Appointment{TenantID: middleware.TenantID(c)}
		if req.MaxParticipants == 0 {
			req.MaxParticipants = 10
		}
		applyReq(&appointment, req)
		if err := db.Create(&appointment).Error; err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(appointment)
	})

	// Block courses: n dates at a weekly cadence sharing one block id.
	staff.Post("/appointments/block", func(c *fiber.Ctx) error {
		type Req struct {
			appointmentReq
			Sessions     int `json:"sessions" validate:"required,min=2,max=52"`
			IntervalDays int `json:"interval_days" validate:"min=1"`
		}
		var req Req
		if err := parseBody(c, &req); err != nil {
			return badRequest(c, "invalid block payload")
		}
		if !req.EndTime.After(req.StartTime) {
			return badRequest(c, "end_time must be after start_time")
		}
		if req.IntervalDays == 0 {
			req.IntervalDays = 7
		}
		if req.MaxParticipants == 0 {
			req.MaxParticipants = 10
		}

		blockID := uuid.NewString()
		appointments := make([]models.Appointment, 0, req.Sessions)
		for i := 0; i < req.Sessions; i++ {
			appointment := models.Appointment{
				TenantID: middleware.TenantID(c),
				BlockID:  blockID,
			}
			applyReq(&appointment, req.appointmentReq)
			offset := time.Duration(i*req.IntervalDays) * 24 * time.Hour
			appointment.StartTime = req.StartTime.Add(offset)
			appointment.EndTime = req.EndTime.Add(offset)
			appointments = append(appointments, appointment)
		}
		if err := db.Create(&appointments).Error; err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(appointments)
	})

	staff.Put("/appointments/:id", func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid appointment id")
		}
		var appointment models.Appointment
		err = db.Where("id = ? AND tenant_id = ?", id, middleware.TenantID(c)).First(&appointment).Error
		if err != nil {
			return fail(c, err)
		}
		var req appointmentReq
		if err := parseBody(c, &req); err != nil {
			return badRequest(c, "invalid appointment payload")
		}
		if !req.EndTime.After(req.StartTime) {
			return badRequest(c, "end_time must be after start_time")
		}
		applyReq(&appointment, req)
		if err := db.Save(&appointment).Error; err != nil {
			return fail(c, err)
		}
		return c.JSON(appointment)
	})

	staff.Delete("/appointments/:id", func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid appointment id")
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			res := tx.Where("id = ? AND tenant_id = ?", id, middleware.TenantID(c)).Delete(&models.Appointment{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return services.ErrNotFound
			}
			return tx.Where("appointment_id = ?", id).Delete(&models.Booking{}).Error
		})
		if err != nil {
			return fail(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	staff.Get("/appointments/:id/participants", func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid appointment id")
		}
		participants, err := bookings.Participants(middleware.TenantID(c), id)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(participants)
	})

	staff.Patch("/bookings/:id/attendance", func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid booking id")
		}
		booking, err := bookings.ToggleAttendance(middleware.TenantID(c), id)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(booking)
	})

	staff.Post("/bookings/:id/bill", func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid booking id")
		}
		txn, err := bookings.BillBooking(middleware.TenantID(c), id, middleware.UserID(c))
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(txn)
	})

	staff.Post("/appointments/:id/bill-all", func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid appointment id")
		}
		results, err := bookings.BillAllParticipants(middleware.TenantID(c), id, middleware.UserID(c))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"results": results})
	})

	staff.Post("/appointments/:id/grant-progress", func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid appointment id")
		}
		results, err := bookings.GrantAllProgress(middleware.TenantID(c), id)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"results": results})
	})
}
