package models

import (
	"time"

	"gorm.io/datatypes"
)

// User roles. Customers ("kunde") book and pay; staff ("mitarbeiter") and
// admins run the school.
const (
	RoleAdmin    = "admin"
	RoleStaff    = "mitarbeiter"
	RoleCustomer = "kunde"
)

// User is a person inside one school: customer, trainer or admin. Email is
// unique per tenant, not globally.
type User struct {
	ID       uint `json:"id" gorm:"primaryKey"`
	TenantID uint `json:"tenant_id" gorm:"not null;uniqueIndex:uix_email_tenant"`

	Name           string `json:"name" gorm:"not null;index"`
	Email          string `json:"email" gorm:"not null;uniqueIndex:uix_email_tenant"`
	HashedPassword string `json:"-"`

	Role     string  `json:"role" gorm:"not null"`
	IsActive bool    `json:"is_active" gorm:"default:true"`
	Balance  float64 `json:"balance" gorm:"default:0"`
	Phone    string  `json:"phone,omitempty"`

	IsVIP          bool  `json:"is_vip" gorm:"default:false"`
	IsExpert       bool  `json:"is_expert" gorm:"default:false"`
	CurrentLevelID *uint `json:"current_level_id"`

	NotificationsEmail    bool `json:"notifications_email" gorm:"default:true"`
	NotificationsPush     bool `json:"notifications_push" gorm:"default:true"`
	ReminderOffsetMinutes int  `json:"reminder_offset_minutes" gorm:"default:60"`

	// Staff permission flags, kept schemaless on purpose: the admin UI owns
	// the set of keys.
	Permissions datatypes.JSON `json:"permissions,omitempty"`

	CustomerSince time.Time `json:"customer_since" gorm:"autoCreateTime"`

	CurrentLevel *Level `json:"current_level,omitempty" gorm:"foreignKey:CurrentLevelID"`
	Dogs         []Dog  `json:"dogs,omitempty" gorm:"foreignKey:OwnerID"`
}

func (u *User) IsStaff() bool {
	return u.Role == RoleAdmin || u.Role == RoleStaff
}

// Dog belongs to a customer. Each dog can progress through the ladder on its
// own; a nil level means unleveled.
type Dog struct {
	ID       uint `json:"id" gorm:"primaryKey"`
	TenantID uint `json:"tenant_id" gorm:"not null;index"`
	OwnerID  uint `json:"owner_id" gorm:"not null;index"`

	Name           string     `json:"name" gorm:"not null"`
	Breed          string     `json:"breed,omitempty"`
	BirthDate      *time.Time `json:"birth_date,omitempty"`
	Chip           string     `json:"chip,omitempty"`
	ImageURL       string     `json:"image_url,omitempty"`
	CurrentLevelID *uint      `json:"current_level_id"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
