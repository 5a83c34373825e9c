package models

import "time"

// Appointment is a course date with limited capacity. Appointments without a
// training type can be booked but never billed.
type Appointment struct {
	ID       uint `json:"id" gorm:"primaryKey"`
	TenantID uint `json:"tenant_id" gorm:"not null;index"`

	Title       string `json:"title" gorm:"not null"`
	Description string `json:"description,omitempty"`

	StartTime time.Time `json:"start_time" gorm:"not null"`
	EndTime   time.Time `json:"end_time" gorm:"not null"`
	Location  string    `json:"location,omitempty"`

	MaxParticipants int `json:"max_participants" gorm:"default:10"`

	TrainerID      *uint `json:"trainer_id,omitempty"`
	TrainingTypeID *uint `json:"training_type_id,omitempty"`

	// Optional per-appointment price; falls back to the training type's
	// default price when nil.
	Price *float64 `json:"price,omitempty"`

	IsOpenForAll bool `json:"is_open_for_all" gorm:"default:false"`

	// Dates created together as a block course share one BlockID.
	BlockID string `json:"block_id,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`

	TrainingType *TrainingType `json:"training_type,omitempty" gorm:"foreignKey:TrainingTypeID"`
	Bookings     []Booking     `json:"bookings,omitempty" gorm:"foreignKey:AppointmentID"`

	// Calculated, not stored.
	ConfirmedCount int64 `json:"confirmed_count,omitempty" gorm:"-"`
	WaitlistCount  int64 `json:"waitlist_count,omitempty" gorm:"-"`
}

// Booking states. A cancelled booking is not terminal: re-booking reuses the
// row and re-applies the capacity rule.
const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusWaitlist  = "waitlist"
	BookingStatusCancelled = "cancelled"
)

// Booking is the single row tying one user to one appointment. CreatedAt is
// the FIFO key for waitlist promotion.
type Booking struct {
	ID            uint `json:"id" gorm:"primaryKey"`
	TenantID      uint `json:"tenant_id" gorm:"not null;index"`
	AppointmentID uint `json:"appointment_id" gorm:"not null;uniqueIndex:uix_appointment_user"`
	UserID        uint `json:"user_id" gorm:"not null;uniqueIndex:uix_appointment_user"`

	Status   string `json:"status" gorm:"default:'confirmed'"`
	Attended bool   `json:"attended" gorm:"default:false"`
	IsBilled bool   `json:"is_billed" gorm:"default:false"`

	DogID *uint `json:"dog_id,omitempty"`

	ReminderSentAt *time.Time `json:"reminder_sent_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`

	Appointment *Appointment `json:"appointment,omitempty" gorm:"foreignKey:AppointmentID"`
	User        *User        `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
