package models

import "time"

// Document is a per-customer file record; the binary lives in object storage
// under FilePath.
type Document struct {
	ID       uint `json:"id" gorm:"primaryKey"`
	TenantID uint `json:"tenant_id" gorm:"not null;index"`
	UserID   uint `json:"user_id" gorm:"not null;index"`

	FileName string `json:"file_name" gorm:"not null"`
	FileType string `json:"file_type" gorm:"not null"`
	FilePath string `json:"file_path" gorm:"not null"`

	UploadDate time.Time `json:"upload_date" gorm:"autoCreateTime"`
}

// PushSubscription stores the browser push endpoint of one device. Delivery
// itself happens outside this service; the notification sink only publishes
// to the queue.
type PushSubscription struct {
	ID       uint `json:"id" gorm:"primaryKey"`
	TenantID uint `json:"tenant_id" gorm:"not null;index"`
	UserID   uint `json:"user_id" gorm:"not null;index"`

	Endpoint string `json:"endpoint" gorm:"not null"`
	P256dh   string `json:"p256dh" gorm:"not null"`
	Auth     string `json:"auth" gorm:"not null"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
