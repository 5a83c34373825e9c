package models

import (
	"time"
)

// BalanceTier grants a bonus when a top-up reaches its threshold amount.
// Tiers never stack; the highest satisfied threshold wins.
type BalanceTier struct {
	Amount float64 `json:"amount"`
	Bonus  float64 `json:"bonus"`
}

type BrandingConfig struct {
	LogoURL      string `json:"logo_url"`
	PrimaryColor string `json:"primary_color"`
}

// TenantConfig is the typed per-tenant configuration document. It is stored
// as a single JSON column and replaced as a whole by the settings endpoint;
// the engines only ever read it.
type TenantConfig struct {
	Branding            BrandingConfig `json:"branding"`
	BalanceTiers        []BalanceTier  `json:"balance_tiers"`
	AutoProgressEnabled bool           `json:"auto_progress_enabled"`
	AutoBillingEnabled  bool           `json:"auto_billing_enabled"`
}

// DefaultTenantConfig returns the config a freshly registered school starts
// with. The tier table matches the long-standing defaults of the product.
func DefaultTenantConfig() TenantConfig {
	return TenantConfig{
		Branding: BrandingConfig{PrimaryColor: "#22C55E"},
		BalanceTiers: []BalanceTier{
			{Amount: 300, Bonus: 150},
			{Amount: 150, Bonus: 30},
			{Amount: 100, Bonus: 15},
			{Amount: 50, Bonus: 5},
		},
		AutoProgressEnabled: true,
		AutoBillingEnabled:  false,
	}
}

// Tenant is one dog-training school. Every other row in the system hangs off
// a tenant id; cross-tenant reads are treated as not found.
type Tenant struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	Name      string `json:"name" gorm:"not null"`
	Subdomain string `json:"subdomain" gorm:"uniqueIndex;not null"`

	Config TenantConfig `json:"config" gorm:"serializer:json"`

	Plan         string `json:"plan" gorm:"default:'starter'"`
	IsActive     bool   `json:"is_active" gorm:"default:true"`
	SupportEmail string `json:"support_email,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
