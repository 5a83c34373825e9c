package handlers

import (
	"time"

	"dogschool-platform/middleware"
	"dogschool-platform/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SetupAuthRoutes wires login. Tenant is resolved from the subdomain in the
// body so one deployment serves every school.
func SetupAuthRoutes(app *fiber.App, db *gorm.DB) {
	app.Post("/auth/login", func(c *fiber.Ctx) error {
		type Req struct {
			Subdomain string `json:"subdomain" validate:"required"`
			Email     string `json:"email" validate:"required,email"`
			Password  string `json:"password" validate:"required"`
		}
		var req Req
		if err := parseBody(c, &req); err != nil {
			return badRequest(c, "invalid login payload")
		}

		var tenant models.Tenant
		if err := db.Where("subdomain = ?", req.Subdomain).First(&tenant).Error; err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
		}

		var user models.User
		err := db.Where("tenant_id = ? AND email = ? AND is_active = ?", tenant.ID, req.Email, true).
			First(&user).Error
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
		}
		if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)) != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
		}

		token, err := middleware.SignToken(user.ID, tenant.ID, user.Role, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   user.Email,
		})
		if err != nil {
			return fail(c, err)
		}

		return c.JSON(fiber.Map{
			"token": token,
			"user":  user,
		})
	})
}
