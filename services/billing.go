package services

import (
	"fmt"
	"sort"
	"time"

	"dogschool-platform/models"

	"gorm.io/gorm"
)

// TransactionService owns the prepaid balance ledger. The balance column on
// the user is a cache of the ledger; the two only ever move together inside
// one database transaction with the user row locked.
type TransactionService struct {
	DB           *gorm.DB
	Config       *TenantConfigService
	Achievements *AchievementService
	Notifier     Notifier
}

func NewTransactionService(db *gorm.DB, config *TenantConfigService, achievements *AchievementService, notifier Notifier) *TransactionService {
	return &TransactionService{DB: db, Config: config, Achievements: achievements, Notifier: notifier}
}

type CreateTransactionInput struct {
	UserID         uint
	BookedByID     uint
	Type           string
	Description    string
	Amount         float64
	TrainingTypeID *uint
	Date           time.Time
}

// topUpBonus picks the bonus of the highest tier whose threshold the amount
// reaches. Tiers do not stack.
func topUpBonus(tiers []models.BalanceTier, amount float64) float64 {
	sorted := make([]models.BalanceTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Amount > sorted[j].Amount })
	for _, tier := range sorted {
		if amount >= tier.Amount {
			return tier.Bonus
		}
	}
	return 0
}

// CreateTransaction books a manual ledger entry and moves the balance.
// Top-ups ("Aufladung") with a positive amount get the tenant's tier bonus
// on top. A debit below the current balance is rejected. When a training
// type is attached, the matching achievement is recorded in the same
// database transaction regardless of the auto-progress setting: a manual
// entry is an explicit staff decision.
func (s *TransactionService) CreateTransaction(tenantID uint, in CreateTransactionInput) (*models.Transaction, error) {
	cfg, err := s.Config.GetConfig(tenantID)
	if err != nil {
		return nil, err
	}

	var txn *models.Transaction
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		user, err := getUser(tx, tenantID, in.UserID, true)
		if err != nil {
			return err
		}

		bonus := 0.0
		if in.Type == models.TransactionTypeTopUp && in.Amount > 0 {
			bonus = topUpBonus(cfg.BalanceTiers, in.Amount)
		}

		newBalance := user.Balance + in.Amount + bonus
		if newBalance < 0 {
			return fmt.Errorf("balance %.2f cannot cover %.2f: %w", user.Balance, -in.Amount, ErrInsufficientFunds)
		}
		if err := tx.Model(user).Update("balance", newBalance).Error; err != nil {
			return err
		}
		user.Balance = newBalance

		bookedByID := in.BookedByID
		if bookedByID == 0 {
			bookedByID = user.ID
		}
		txn = &models.Transaction{
			TenantID:       tenantID,
			UserID:         user.ID,
			BookedByID:     bookedByID,
			Type:           in.Type,
			Description:    in.Description,
			Amount:         in.Amount,
			BalanceAfter:   newBalance,
			Bonus:          bonus,
			TrainingTypeID: in.TrainingTypeID,
		}
		if !in.Date.IsZero() {
			txn.Date = in.Date
		}
		if err := tx.Create(txn).Error; err != nil {
			return err
		}

		if in.TrainingTypeID != nil {
			input := CreateAchievementInput{
				UserID:         user.ID,
				TrainingTypeID: *in.TrainingTypeID,
				TransactionID:  &txn.ID,
				Date:           in.Date,
			}
			if _, err := s.Achievements.Create(tx, tenantID, input); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	title := "Guthaben aktualisiert"
	message := fmt.Sprintf("Neuer Kontostand: %.2f €", txn.BalanceAfter)
	if txn.Bonus > 0 {
		message = fmt.Sprintf("Aufladung inkl. %.2f € Bonus. Neuer Kontostand: %.2f €", txn.Bonus, txn.BalanceAfter)
	}
	s.Notifier.Notify(tenantID, txn.UserID, NotifyCategoryBalance, title, message, "/balance", nil)

	return txn, nil
}

type ListTransactionsOptions struct {
	UserID     *uint
	BookedByID *uint
}

// List returns ledger entries newest first, optionally narrowed to one
// customer or one booking staff member.
func (s *TransactionService) List(tenantID uint, opts ListTransactionsOptions) ([]models.Transaction, error) {
	q := s.DB.Where("tenant_id = ?", tenantID)
	if opts.UserID != nil {
		q = q.Where("user_id = ?", *opts.UserID)
	}
	if opts.BookedByID != nil {
		q = q.Where("booked_by_id = ?", *opts.BookedByID)
	}
	var txns []models.Transaction
	err := q.Preload("BookedBy").Order("date DESC, id DESC").Find(&txns).Error
	return txns, err
}

// Balance reads the current balance of a user.
func (s *TransactionService) Balance(tenantID, userID uint) (float64, error) {
	user, err := getUser(s.DB, tenantID, userID, false)
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}
