package models

import "time"

// TransactionTypeTopUp is the only type that triggers bonus tiers. Billing
// transactions carry the training type's name as their type.
const TransactionTypeTopUp = "Aufladung"

// BillingDescription is the deterministic idempotency key for appointment
// billing: a second billing attempt for the same user and appointment finds
// the existing row by this description and is rejected.
func BillingDescription(appointmentTitle string) string {
	return "Abrechnung: " + appointmentTitle
}

// Transaction is an immutable ledger entry. Amount is the raw signed amount
// (positive credit, negative debit); Bonus is recorded separately so both
// stay auditable, and BalanceAfter snapshots the balance including the
// bonus. Balance never changes without a transaction row.
type Transaction struct {
	ID       uint `json:"id" gorm:"primaryKey"`
	TenantID uint `json:"tenant_id" gorm:"not null;index"`
	UserID   uint `json:"user_id" gorm:"not null;index"`

	// Staff member who booked the entry; defaults to the customer so the
	// attribution is never dangling.
	BookedByID uint `json:"booked_by_id"`

	Date         time.Time `json:"date" gorm:"autoCreateTime"`
	Type         string    `json:"type" gorm:"not null"`
	Description  string    `json:"description"`
	Amount       float64   `json:"amount" gorm:"not null"`
	BalanceAfter float64   `json:"balance_after" gorm:"not null"`
	Bonus        float64   `json:"bonus" gorm:"default:0"`

	TrainingTypeID *uint `json:"training_type_id,omitempty"`

	User     *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
	BookedBy *User `json:"booked_by,omitempty" gorm:"foreignKey:BookedByID"`
}
