package handlers

import (
	"dogschool-platform/middleware"
	"dogschool-platform/models"
	"dogschool-platform/services"

	"github.com/gofiber/fiber/v2"
)

// SetupTransactionRoutes wires the prepaid ledger. Customers see their own
// entries; staff book and list across the tenant.
func SetupTransactionRoutes(app *fiber.App, transactions *services.TransactionService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/transactions/me", func(c *fiber.Ctx) error {
		userID := middleware.UserID(c)
		list, err := transactions.List(middleware.TenantID(c), services.ListTransactionsOptions{
			UserID: &userID,
		})
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(list)
	})

	secured.Get("/balance/me", func(c *fiber.Ctx) error {
		balance, err := transactions.Balance(middleware.TenantID(c), middleware.UserID(c))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"balance": balance})
	})

	staff := secured.Group("/", middleware.RequireRole(models.RoleAdmin, models.RoleStaff))

	staff.Post("/transactions", func(c *fiber.Ctx) error {
		type Req struct {
			UserID         uint    `json:"user_id" validate:"required"`
			Type           string  `json:"type" validate:"required"`
			Description    string  `json:"description"`
			Amount         float64 `json:"amount" validate:"required"`
			TrainingTypeID *uint   `json:"training_type_id"`
		}
		var req Req
		if err := parseBody(c, &req); err != nil {
			return badRequest(c, "invalid transaction payload")
		}
		txn, err := transactions.CreateTransaction(middleware.TenantID(c), services.CreateTransactionInput{
			UserID:         req.UserID,
			BookedByID:     middleware.UserID(c),
			Type:           req.Type,
			Description:    req.Description,
			Amount:         req.Amount,
			TrainingTypeID: req.TrainingTypeID,
		})
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(txn)
	})

	staff.Get("/transactions", func(c *fiber.Ctx) error {
		var opts services.ListTransactionsOptions
		if raw, err := paramQuery(c, "user_id"); err != nil {
			return badRequest(c, "invalid user_id")
		} else if raw != nil {
			opts.UserID = raw
		}
		if raw, err := paramQuery(c, "booked_by_id"); err != nil {
			return badRequest(c, "invalid booked_by_id")
		} else if raw != nil {
			opts.BookedByID = raw
		}
		list, err := transactions.List(middleware.TenantID(c), opts)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(list)
	})

	staff.Get("/users/:id/transactions", func(c *fiber.Ctx) error {
		userID, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "invalid user id")
		}
		list, err := transactions.List(middleware.TenantID(c), services.ListTransactionsOptions{
			UserID: &userID,
		})
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(list)
	})
}
