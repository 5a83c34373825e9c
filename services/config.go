package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dogschool-platform/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// TenantConfigService is the read side of per-tenant configuration. Engines
// only read through it; the settings endpoint replaces the whole document.
// When a Redis client is present, reads go through a short-lived cache so
// the booking and billing hot paths do not hit the tenants table on every
// request.
type TenantConfigService struct {
	DB    *gorm.DB
	Cache *redis.Client
	TTL   time.Duration
}

func NewTenantConfigService(db *gorm.DB, cache *redis.Client) *TenantConfigService {
	return &TenantConfigService{DB: db, Cache: cache, TTL: 60 * time.Second}
}

func (s *TenantConfigService) cacheKey(tenantID uint) string {
	return fmt.Sprintf("tenantcfg:%d", tenantID)
}

// GetTenant loads a tenant by id.
func (s *TenantConfigService) GetTenant(tenantID uint) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := s.DB.First(&tenant, "id = ?", tenantID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("tenant %d: %w", tenantID, ErrNotFound)
		}
		return nil, err
	}
	return &tenant, nil
}

// GetConfig returns the typed config for a tenant, cache first.
func (s *TenantConfigService) GetConfig(tenantID uint) (models.TenantConfig, error) {
	if s.Cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if raw, err := s.Cache.Get(ctx, s.cacheKey(tenantID)).Bytes(); err == nil {
			var cfg models.TenantConfig
			if json.Unmarshal(raw, &cfg) == nil {
				return cfg, nil
			}
		}
	}

	tenant, err := s.GetTenant(tenantID)
	if err != nil {
		return models.TenantConfig{}, err
	}

	if s.Cache != nil {
		if raw, err := json.Marshal(tenant.Config); err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = s.Cache.Set(ctx, s.cacheKey(tenantID), raw, s.TTL).Err()
		}
	}
	return tenant.Config, nil
}

// ReplaceConfig overwrites the tenant's config document and drops the cache
// entry. Structural validation beyond defaults is the settings UI's job.
func (s *TenantConfigService) ReplaceConfig(tenantID uint, cfg models.TenantConfig) error {
	res := s.DB.Model(&models.Tenant{}).Where("id = ?", tenantID).Update("config", cfg)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("tenant %d: %w", tenantID, ErrNotFound)
	}
	if s.Cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Cache.Del(ctx, s.cacheKey(tenantID)).Err()
	}
	return nil
}
