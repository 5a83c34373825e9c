package handlers

import (
	"fmt"
	"path/filepath"
	"time"

	"dogschool-platform/middleware"
	"dogschool-platform/models"
	"dogschool-platform/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SetupDocumentRoutes wires per-customer file storage (vaccination records,
// contracts). Binaries live in the bucket, metadata in the documents table.
// Staff upload and delete; owners and staff download via short-lived links.
func SetupDocumentRoutes(app *fiber.App, db *gorm.DB, storage *utils.Storage) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	canAccess := func(c *fiber.Ctx, ownerID uint) bool {
		return middleware.Role(c) != models.RoleCustomer || middleware.UserID(c) == ownerID
	}

	secured.Get("/users/:id/documents", func(c *fiber.Ctx) error {
		userID, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid user id")
		}
		if !canAccess(c, userID) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not your documents"})
		}
		var docs []models.Document
		err = db.Where("user_id = ? AND tenant_id = ?", userID, middleware.TenantID(c)).
			Order("upload_date DESC").
			Find(&docs).Error
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(docs)
	})

	secured.Get("/documents/:id/download", func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid document id")
		}
		var doc models.Document
		err = db.Where("id = ? AND tenant_id = ?", id, middleware.TenantID(c)).First(&doc).Error
		if err != nil {
			return fail(c, err)
		}
		if !canAccess(c, doc.UserID) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not your document"})
		}
		if storage == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "document storage not configured"})
		}
		url, err := storage.PresignGet(c.Context(), doc.FilePath, 15*time.Minute)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"url": url})
	})

	staff := secured.Group("/", middleware.RequireRole(models.RoleAdmin, models.RoleStaff))

	staff.Post("/users/:id/documents", func(c *fiber.Ctx) error {
		userID, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid user id")
		}
		if storage == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "document storage not configured"})
		}
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return badRequest(c, "file is required")
		}
		if fileHeader.Size > 25*1024*1024 { // 25MB
			return badRequest(c, "file too large (max 25MB)")
		}

		ext := filepath.Ext(fileHeader.Filename)
		key := fmt.Sprintf("documents/%d/%s%s", middleware.TenantID(c), uuid.NewString(), ext)
		if err := storage.Upload(c.Context(), fileHeader, key); err != nil {
			return fail(c, err)
		}

		doc := models.Document{
			TenantID: middleware.TenantID(c),
			UserID:   userID,
			FileName: fileHeader.Filename,
			FileType: fileHeader.Header.Get("Content-Type"),
			FilePath: key,
		}
		if err := db.Create(&doc).Error; err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	})

	staff.Delete("/documents/:id", func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid document id")
		}
		var doc models.Document
		err = db.Where("id = ? AND tenant_id = ?", id, middleware.TenantID(c)).First(&doc).Error
		if err != nil {
			return fail(c, err)
		}
		if storage != nil {
			if err := storage.Delete(c.Context(), doc.FilePath); err != nil {
				return fail(c, err)
			}
		}
		if err := db.Delete(&doc).Error; err != nil {
			return fail(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
