package services

import (
	"sync"
	"testing"
	"time"

	"dogschool-platform/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database. Capped to one connection
// so every test sees a single serialized writer, matching how the services
// assume row locks behave in production.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.Tenant{},
		&models.User{},
		&models.Dog{},
		&models.TrainingType{},
		&models.Level{},
		&models.LevelRequirement{},
		&models.Achievement{},
		&models.Appointment{},
		&models.Booking{},
		&models.Transaction{},
		&models.Document{},
		&models.PushSubscription{},
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []NotificationEvent
}

func (n *recordingNotifier) Notify(tenantID, userID uint, category, title, message, link string, details map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, NotificationEvent{
		TenantID: tenantID,
		UserID:   userID,
		Category: category,
		Title:    title,
		Message:  message,
		Link:     link,
		Details:  details,
	})
}

func (n *recordingNotifier) byCategory(category string) []NotificationEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []NotificationEvent
	for _, e := range n.events {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

func seedTenant(t *testing.T, db *gorm.DB) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{
		Name:      "Hundeschule Test",
		Subdomain: "test",
		Config:    models.DefaultTenantConfig(),
	}
	if err := db.Create(tenant).Error; err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	return tenant
}

func seedUser(t *testing.T, db *gorm.DB, tenantID uint, name string, balance float64) *models.User {
	t.Helper()
	user := &models.User{
		TenantID: tenantID,
		Name:     name,
		Email:    name + "@example.com",
		Role:     models.RoleCustomer,
		IsActive: true,
		Balance:  balance,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return user
}

func seedTrainingType(t *testing.T, db *gorm.DB, tenantID uint, name, category string, price float64) *models.TrainingType {
	t.Helper()
	trainingType := &models.TrainingType{
		TenantID:     tenantID,
		Name:         name,
		Category:     category,
		DefaultPrice: price,
	}
	if err := db.Create(trainingType).Error; err != nil {
		t.Fatalf("seed training type %s: %v", name, err)
	}
	return trainingType
}

func seedLevel(t *testing.T, db *gorm.DB, tenantID uint, name string, rank int, reqs ...models.LevelRequirement) *models.Level {
	t.Helper()
	level := &models.Level{TenantID: tenantID, Name: name, RankOrder: rank}
	if err := db.Create(level).Error; err != nil {
		t.Fatalf("seed level %s: %v", name, err)
	}
	for i := range reqs {
		reqs[i].LevelID = level.ID
		if reqs[i].RequiredCount == 0 {
			reqs[i].RequiredCount = 1
		}
		if err := db.Create(&reqs[i]).Error; err != nil {
			t.Fatalf("seed requirement for %s: %v", name, err)
		}
	}
	return level
}

func seedAppointment(t *testing.T, db *gorm.DB, tenantID uint, title string, trainingTypeID *uint, maxParticipants int) *models.Appointment {
	t.Helper()
	start := time.Date(2026, 9, 14, 17, 0, 0, 0, time.UTC)
	appointment := &models.Appointment{
		TenantID:        tenantID,
		Title:           title,
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		MaxParticipants: maxParticipants,
		TrainingTypeID:  trainingTypeID,
	}
	if err := db.Create(appointment).Error; err != nil {
		t.Fatalf("seed appointment %s: %v", title, err)
	}
	return appointment
}

// setBookingCreatedAt rewrites the FIFO key, so tests control waitlist
// order without sleeping.
func setBookingCreatedAt(t *testing.T, db *gorm.DB, bookingID uint, at time.Time) {
	t.Helper()
	err := db.Model(&models.Booking{}).Where("id = ?", bookingID).Update("created_at", at).Error
	if err != nil {
		t.Fatalf("set booking created_at: %v", err)
	}
}

func grantAchievement(t *testing.T, db *gorm.DB, svc *AchievementService, tenantID, userID, trainingTypeID uint) *models.Achievement {
	t.Helper()
	var achievement *models.Achievement
	err := db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		achievement, txErr = svc.Create(tx, tenantID, CreateAchievementInput{
			UserID:         userID,
			TrainingTypeID: trainingTypeID,
		})
		return txErr
	})
	if err != nil {
		t.Fatalf("grant achievement: %v", err)
	}
	return achievement
}
