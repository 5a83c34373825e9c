package handlers

import (
	"dogschool-platform/middleware"
	"dogschool-platform/models"
	"dogschool-platform/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SetupTenantRoutes wires school registration and settings.
func SetupTenantRoutes(app *fiber.App, db *gorm.DB, configService *services.TenantConfigService) {
	// 🔓 Public: a new school registers itself together with its first admin.
	app.Post("/tenants/register", func(c *fiber.Ctx) error {
		type Req struct {
			SchoolName    string `json:"school_name" validate:"required"`
			Subdomain     string `json:"subdomain"`
			AdminName     string `json:"admin_name" validate:"required"`
			AdminEmail    string `json:"admin_email" validate:"required,email"`
			AdminPassword string `json:"admin_password" validate:"required,min=8"`
		}
		var req Req
		if err := parseBody(c, &req); err != nil {
			return badRequest(c, "invalid registration payload")
		}

		subdomain := req.Subdomain
		if subdomain == "" {
			subdomain = req.SchoolName
		}
		subdomain = slug.Make(subdomain)

		hash, err := bcrypt.GenerateFromPassword([]byte(req.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return fail(c, err)
		}

		tenant := models.Tenant{
			Name:      req.SchoolName,
			Subdomain: subdomain,
			Config:    models.DefaultTenantConfig(),
		}
		admin := models.User{
			Name:           req.AdminName,
			Email:          req.AdminEmail,
			HashedPassword: string(hash),
			Role:           models.RoleAdmin,
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			var taken int64
			if err := tx.Model(&models.Tenant{}).Where("subdomain = ?", subdomain).Count(&taken).Error; err != nil {
				return err
			}
			if taken > 0 {
				return services.ErrConflict
			}
			if err := tx.Create(&tenant).Error; err != nil {
				return err
			}
			admin.TenantID = tenant.ID
			return tx.Create(&admin).Error
		})
		if err != nil {
			return fail(c, err)
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"tenant": tenant,
			"admin":  admin,
		})
	})

	// 🔓 Public: branding for the login page, looked up by subdomain.
	app.Get("/tenants/:subdomain/branding", func(c *fiber.Ctx) error {
		var tenant models.Tenant
		if err := db.Where("subdomain = ?", c.Params("subdomain")).First(&tenant).Error; err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{
			"name":     tenant.Name,
			"branding": tenant.Config.Branding,
		})
	})

	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/settings", func(c *fiber.Ctx) error {
		cfg, err := configService.GetConfig(middleware.TenantID(c))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(cfg)
	})

	// Settings are replaced whole, never patched field by field.
	admin := secured.Group("/", middleware.RequireRole(models.RoleAdmin))
	admin.Put("/settings", func(c *fiber.Ctx) error {
		var cfg models.TenantConfig
		if err := c.BodyParser(&cfg); err != nil {
			return badRequest(c, "invalid settings payload")
		}
		for _, tier := range cfg.BalanceTiers {
			if tier.Amount <= 0 || tier.Bonus < 0 {
				return badRequest(c, "balance tiers need a positive amount and a non-negative bonus")
			}
		}
		if err := configService.ReplaceConfig(middleware.TenantID(c), cfg); err != nil {
			return fail(c, err)
		}
		return c.JSON(cfg)
	})
}
