package models

import "time"

// Well-known training type categories. Anything that is not "exam" counts as
// a non-exam requirement during eligibility checks.
const (
	CategoryTraining = "training"
	CategoryExam     = "exam"
)

// TrainingType is a billable service in a school's catalog, e.g.
// "Gruppenstunde" or "Prüfung".
type TrainingType struct {
	ID       uint `json:"id" gorm:"primaryKey"`
	TenantID uint `json:"tenant_id" gorm:"not null;index"`

	Name         string  `json:"name" gorm:"not null"`
	Category     string  `json:"category" gorm:"not null"`
	DefaultPrice float64 `json:"default_price" gorm:"default:0"`
	RankOrder    int     `json:"rank_order" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (t *TrainingType) IsExam() bool {
	return t.Category == CategoryExam
}
