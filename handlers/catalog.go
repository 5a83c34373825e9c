package handlers

import (
	"dogschool-platform/middleware"
	"dogschool-platform/models"
	"dogschool-platform/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SetupCatalogRoutes wires the training type and level catalogs. Reads are
// open to everyone in the tenant, writes are admin-only.
func SetupCatalogRoutes(app *fiber.App, db *gorm.DB) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/training-types", func(c *fiber.Ctx) error {
		var types []models.TrainingType
		err := db.Where("tenant_id = ?", middleware.TenantID(c)).
			Order("rank_order ASC, name ASC").
			Find(&types).Error
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(types)
	})

	secured.Get("/levels", func(c *fiber.Ctx) error {
		var levels []models.Level
		err := db.Where("tenant_id = ?", middleware.TenantID(c)).
			Preload("Requirements", func(q *gorm.DB) *gorm.DB {
				return q.Order("rank_order ASC")
			}).
			Preload("Requirements.TrainingType").
			Order("rank_order ASC").
			Find(&levels).Error
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(levels)
	})

	admin := secured.Group("/", middleware.RequireRole(models.RoleAdmin))

	admin.Post("/training-types", func(c *fiber.Ctx) error {
		type Req struct {
			Name         string  `json:"name" validate:"required"`
			Category     string  `json:"category" validate:"required,oneof=training exam"`
			DefaultPrice float64 `json:"default_price" validate:"min=0"`
			RankOrder    int     `json:"rank_order"`
		}
		var req Req
		if err := parseBody(c, &req); err != nil {
			return badRequest(c, "invalid training type payload")
		}
		trainingType := models.TrainingType{
			TenantID:     middleware.TenantID(c),
			Name:         req.Name,
			Category:     req.Category,
			DefaultPrice: req.DefaultPrice,
			RankOrder:    req.RankOrder,
		}
		if err := db.Create(&trainingType).Error; err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(trainingType)
	})

	admin.Put("/training-types/:id", func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid training type id")
		}
		var trainingType models.TrainingType
		err = db.Where("id = ? AND tenant_id = ?", id, middleware.TenantID(c)).First(&trainingType).Error
		if err != nil {
			return fail(c, err)
		}
		type Req struct {
			Name         string  `json:"name" validate:"required"`
			Category     string  `json:"category" validate:"required,oneof=training exam"`
			DefaultPrice float64 `json:"default_price" validate:"min=0"`
			RankOrder    int     `json:"rank_order"`
		}
		var req Req
		if err := parseBody(c, &req); err != nil {
			return badRequest(c, "invalid training type payload")
		}
		trainingType.Name = req.Name
		trainingType.Category = req.Category
		trainingType.DefaultPrice = req.DefaultPrice
		trainingType.RankOrder = req.RankOrder
		if err := db.Save(&trainingType).Error; err != nil {
			return fail(c, err)
		}
		return c.JSON(trainingType)
	})

	admin.Delete("/training-types/:id", func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid training type id")
		}
		// A type referenced by a level requirement stays; dropping it would
		// silently change eligibility for everyone on that ladder.
		var refs int64
		if err := db.Model(&models.LevelRequirement{}).Where("training_type_id = ?", id).Count(&refs).Error; err != nil {
			return fail(c, err)
		}
		if refs > 0 {
			return fail(c, services.ErrConflict)
		}
		res := db.Where("id = ? AND tenant_id = ?", id, middleware.TenantID(c)).Delete(&models.TrainingType{})
		if res.Error != nil {
			return fail(c, res.Error)
		}
		if res.RowsAffected == 0 {
			return fail(c, services.ErrNotFound)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	type requirementReq struct {
		TrainingTypeID uint `json:"training_type_id" validate:"required"`
		RequiredCount  int  `json:"required_count" validate:"min=1"`
		IsAdditional   bool `json:"is_additional"`
		RankOrder      int  `json:"rank_order"`
	}
	type levelReq struct {
		Name         string           `json:"name" validate:"required"`
		RankOrder    int              `json:"rank_order" validate:"required"`
		IconURL      string           `json:"icon_url"`
		Color        string           `json:"color"`
		Requirements []requirementReq `json:"requirements" validate:"dive"`
	}

	buildRequirements := func(levelID uint, reqs []requirementReq) []models.LevelRequirement {
		out := make([]models.LevelRequirement, 0, len(reqs))
		for _, r := range reqs {
			count := r.RequiredCount
			if count == 0 {
				count = 1
			}
			out = append(out, models.LevelRequirement{
				LevelID:        levelID,
				TrainingTypeID: r.TrainingTypeID,
				RequiredCount:  count,
				IsAdditional:   r.IsAdditional,
				RankOrder:      r.RankOrder,
			})
		}
		return out
	}

	hasAdditional := func(reqs []requirementReq) bool {
		for _, r := range reqs {
			if r.IsAdditional {
				return true
			}
		}
		return false
	}

	admin.Post("/levels", func(c *fiber.Ctx) error {
		var req levelReq
		if err := parseBody(c, &req); err != nil {
			return badRequest(c, "invalid level payload")
		}
		level := models.Level{
			TenantID:                  middleware.TenantID(c),
			Name:                      req.Name,
			RankOrder:                 req.RankOrder,
			IconURL:                   req.IconURL,
			Color:                     req.Color,
			HasAdditionalRequirements: hasAdditional(req.Requirements),
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&level).Error; err != nil {
				return err
			}
			reqs := buildRequirements(level.ID, req.Requirements)
			if len(reqs) == 0 {
				return nil
			}
			return tx.Create(&reqs).Error
		})
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(level)
	})

	// Requirements are replaced with the level, same shape as create.
	admin.Put("/levels/:id", func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid level id")
		}
		var level models.Level
		err = db.Where("id = ? AND tenant_id = ?", id, middleware.TenantID(c)).First(&level).Error
		if err != nil {
			return fail(c, err)
		}
		var req levelReq
		if err := parseBody(c, &req); err != nil {
			return badRequest(c, "invalid level payload")
		}
		level.Name = req.Name
		level.RankOrder = req.RankOrder
		level.IconURL = req.IconURL
		level.Color = req.Color
		level.HasAdditionalRequirements = hasAdditional(req.Requirements)

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Save(&level).Error; err != nil {
				return err
			}
			if err := tx.Where("level_id = ?", level.ID).Delete(&models.LevelRequirement{}).Error; err != nil {
				return err
			}
			reqs := buildRequirements(level.ID, req.Requirements)
			if len(reqs) == 0 {
				return nil
			}
			return tx.Create(&reqs).Error
		})
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(level)
	})

	admin.Delete("/levels/:id", func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid level id")
		}
		// Users still holding the level keep working: a dangling
		// current_level_id just reads as unleveled.
		err = db.Transaction(func(tx *gorm.DB) error {
			res := tx.Where("id = ? AND tenant_id = ?", id, middleware.TenantID(c)).Delete(&models.Level{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return services.ErrNotFound
			}
			return tx.Where("level_id = ?", id).Delete(&models.LevelRequirement{}).Error
		})
		if err != nil {
			return fail(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
