package models

import "time"

// Achievement records that a user completed one instance of a training type.
// Consumption is one-way: a level-up marks achievements consumed and nothing
// ever un-consumes them. An exam achievement created before the level's
// non-exam prerequisites are met is written consumed from the start, so it
// can never be redeemed later.
type Achievement struct {
	ID       uint `json:"id" gorm:"primaryKey"`
	TenantID uint `json:"tenant_id" gorm:"not null;index"`
	UserID   uint `json:"user_id" gorm:"not null;index"`

	TrainingTypeID uint  `json:"training_type_id" gorm:"not null;index"`
	DogID          *uint `json:"dog_id,omitempty"`
	TransactionID  *uint `json:"transaction_id,omitempty"`

	DateAchieved time.Time `json:"date_achieved" gorm:"autoCreateTime"`
	IsConsumed   bool      `json:"is_consumed" gorm:"default:false;not null"`

	TrainingType *TrainingType `json:"training_type,omitempty" gorm:"foreignKey:TrainingTypeID"`
}
