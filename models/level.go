package models

import "time"

// Level is one rung of a school's progression ladder. RankOrder is unique
// per tenant and is the only ordering key: the next level is the one with
// the smallest rank_order strictly greater than the current one.
type Level struct {
	ID       uint `json:"id" gorm:"primaryKey"`
	TenantID uint `json:"tenant_id" gorm:"not null;uniqueIndex:uix_tenant_rank"`

	Name      string `json:"name" gorm:"not null"`
	RankOrder int    `json:"rank_order" gorm:"not null;uniqueIndex:uix_tenant_rank"`
	IconURL   string `json:"icon_url,omitempty"`
	Color     string `json:"color,omitempty"`

	// True when the level carries optional bonus requirements on top of the
	// mandatory ones (shown separately in the customer app).
	HasAdditionalRequirements bool `json:"has_additional_requirements" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`

	Requirements []LevelRequirement `json:"requirements,omitempty" gorm:"foreignKey:LevelID"`
}

// LevelRequirement demands a number of completions of one training type
// before the owning level can be left. IsAdditional marks bonus requirements
// that never gate eligibility.
type LevelRequirement struct {
	ID             uint `json:"id" gorm:"primaryKey"`
	LevelID        uint `json:"level_id" gorm:"not null;index"`
	TrainingTypeID uint `json:"training_type_id" gorm:"not null;index"`

	RequiredCount int  `json:"required_count" gorm:"default:1"`
	IsAdditional  bool `json:"is_additional" gorm:"default:false"`
	RankOrder     int  `json:"rank_order" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`

	TrainingType TrainingType `json:"training_type,omitempty" gorm:"foreignKey:TrainingTypeID"`
}
