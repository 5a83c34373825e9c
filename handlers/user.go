package handlers

import (
	"dogschool-platform/middleware"
	"dogschool-platform/models"
	"dogschool-platform/services"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SetupUserRoutes wires users, their dogs and the progression endpoints.
func SetupUserRoutes(app *fiber.App, db *gorm.DB, progression *services.ProgressionService, achievements *services.AchievementService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/users/me", func(c *fiber.Ctx) error {
		var user models.User
		err := db.Where("id = ? AND tenant_id = ?", middleware.UserID(c), middleware.TenantID(c)).
			Preload("CurrentLevel").
			Preload("Dogs").
			First(&user).Error
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(user)
	})

	secured.Put("/users/me/notifications", func(c *fiber.Ctx) error {
		type Req struct {
			NotificationsEmail    *bool `json:"notifications_email"`
			NotificationsPush     *bool `json:"notifications_push"`
			ReminderOffsetMinutes *int  `json:"reminder_offset_minutes" validate:"omitempty,min=0,max=10080"`
		}
		var req Req
		if err := parseBody(c, &req); err != nil {
			return badRequest(c, "invalid notification settings")
		}
		updates := map[string]interface{}{}
		if req.NotificationsEmail != nil {
			updates["notifications_email"] = *req.NotificationsEmail
		}
		if req.NotificationsPush != nil {
			updates["notifications_push"] = *req.NotificationsPush
		}
		if req.ReminderOffsetMinutes != nil {
			updates["reminder_offset_minutes"] = *req.ReminderOffsetMinutes
		}
		if len(updates) == 0 {
			return badRequest(c, "nothing to update")
		}
		err := db.Model(&models.User{}).
			Where("id = ? AND tenant_id = ?", middleware.UserID(c), middleware.TenantID(c)).
			Updates(updates).Error
		if err != nil {
			return fail(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	secured.Post("/users/me/push-subscriptions", func(c *fiber.Ctx) error {
		type Req struct {
			Endpoint string `json:"endpoint" validate:"required,url"`
			P256dh   string `json:"p256dh" validate:"required"`
			Auth     string `json:"auth" validate:"required"`
		}
		var req Req
		if err := parseBody(c, &req); err != nil {
			return badRequest(c, "invalid push subscription")
		}
		sub := models.PushSubscription{
			TenantID: middleware.TenantID(c),
			UserID:   middleware.UserID(c),
			Endpoint: req.Endpoint,
			P256dh:   req.P256dh,
			Auth:     req.Auth,
		}
		// Same endpoint re-registered is a refresh, not a duplicate.
		err := db.Where("endpoint = ?", req.Endpoint).
			Assign(sub).
			FirstOrCreate(&sub).Error
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(sub)
	})

	// Dogs
	secured.Get("/users/:id/dogs", func(c *fiber.Ctx) error {
		ownerID, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid user id")
		}
		var dogs []models.Dog
		err = db.Where("owner_id = ? AND tenant_id = ?", ownerID, middleware.TenantID(c)).
			Order("name ASC").
			Find(&dogs).Error
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(dogs)
	})

	secured.Post("/users/:id/dogs", func(c *fiber.Ctx) error {
		ownerID, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid user id")
		}
		var dog models.Dog
		if err := c.BodyParser(&dog); err != nil || dog.Name == "" {
			return badRequest(c, "dog name is required")
		}
		dog.ID = 0
		dog.TenantID = middleware.TenantID(c)
		dog.OwnerID = ownerID
		if err := db.Create(&dog).Error; err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(dog)
	})

	// Progression
	secured.Get("/users/:id/eligibility", func(c *fiber.Ctx) error {
		userID, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid user id")
		}
		ok, err := progression.CheckEligibility(middleware.TenantID(c), userID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"eligible": ok})
	})

	secured.Get("/users/:id/achievements", func(c *fiber.Ctx) error {
		userID, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid user id")
		}
		list, err := achievements.ListForUser(middleware.TenantID(c), userID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(list)
	})

	staff := secured.Group("/", middleware.RequireRole(models.RoleAdmin, models.RoleStaff))

	staff.Get("/users", func(c *fiber.Ctx) error {
		q := db.Where("tenant_id = ?", middleware.TenantID(c))
		if role := c.Query("role"); role != "" {
			q = q.Where("role = ?", role)
		}
		var users []models.User
		if err := q.Preload("CurrentLevel").Order("name ASC").Find(&users).Error; err != nil {
			return fail(c, err)
		}
		return c.JSON(users)
	})

	staff.Post("/users", func(c *fiber.Ctx) error {
		type Req struct {
			Name     string `json:"name" validate:"required"`
			Email    string `json:"email" validate:"required,email"`
			Password string `json:"password" validate:"required,min=8"`
			Role     string `json:"role" validate:"omitempty,oneof=admin mitarbeiter kunde"`
			Phone    string `json:"phone"`
		}
		var req Req
		if err := parseBody(c, &req); err != nil {
			return badRequest(c, "invalid user payload")
		}
		if req.Role == "" {
			req.Role = models.RoleCustomer
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return fail(c, err)
		}
		user := models.User{
			TenantID:       middleware.TenantID(c),
			Name:           req.Name,
			Email:          req.Email,
			HashedPassword: string(hash),
			Role:           req.Role,
			Phone:          req.Phone,
		}
		if err := db.Create(&user).Error; err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(user)
	})

	staff.Get("/users/:id", func(c *fiber.Ctx) error {
		userID, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid user id")
		}
		var user models.User
		err = db.Where("id = ? AND tenant_id = ?", userID, middleware.TenantID(c)).
			Preload("CurrentLevel").
			Preload("Dogs").
			First(&user).Error
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(user)
	})

	staff.Post("/users/:id/level-up", func(c *fiber.Ctx) error {
		userID, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid user id")
		}
		user, err := progression.PerformLevelUp(middleware.TenantID(c), userID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(user)
	})

	// Manual override: set any level, or clear it. No achievements consumed.
	staff.Put("/users/:id/level", func(c *fiber.Ctx) error {
		userID, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid user id")
		}
		type Req struct {
			LevelID *uint `json:"level_id"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid level payload")
		}
		user, err := progression.SetLevel(middleware.TenantID(c), userID, req.LevelID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(user)
	})

	// Manual achievement entry outside any appointment or transaction.
	staff.Post("/users/:id/achievements", func(c *fiber.Ctx) error {
		userID, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid user id")
		}
		type Req struct {
			TrainingTypeID uint  `json:"training_type_id" validate:"required"`
			DogID          *uint `json:"dog_id"`
		}
		var req Req
		if err := parseBody(c, &req); err != nil {
			return badRequest(c, "invalid achievement payload")
		}
		var achievement *models.Achievement
		err = db.Transaction(func(tx *gorm.DB) error {
			var txErr error
			achievement, txErr = achievements.Create(tx, middleware.TenantID(c), services.CreateAchievementInput{
				UserID:         userID,
				TrainingTypeID: req.TrainingTypeID,
				DogID:          req.DogID,
			})
			return txErr
		})
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(achievement)
	})
}
