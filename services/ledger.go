package services

import (
	"fmt"
	"time"

	"dogschool-platform/models"

	"gorm.io/gorm"
)

// AchievementService is the achievement ledger: it records training
// completions and answers the aggregate questions the progression engine
// asks. All reads are tenant-scoped; rows from another tenant behave as
// absent.
type AchievementService struct {
	DB *gorm.DB
}

func NewAchievementService(db *gorm.DB) *AchievementService {
	return &AchievementService{DB: db}
}

// CreateAchievementInput describes one training completion to record.
type CreateAchievementInput struct {
	UserID         uint
	TrainingTypeID uint
	DogID          *uint
	TransactionID  *uint
	// Zero means "now".
	Date time.Time
}

// UnconsumedCounts returns the user's unconsumed achievements grouped by
// training type, the aggregate every eligibility check runs on.
func (s *AchievementService) UnconsumedCounts(tx *gorm.DB, tenantID, userID uint) (map[uint]int64, error) {
	type row struct {
		TrainingTypeID uint
		Count          int64
	}
	var rows []row
	err := tx.Model(&models.Achievement{}).
		Select("training_type_id, COUNT(*) as count").
		Where("tenant_id = ? AND user_id = ? AND is_consumed = ?", tenantID, userID, false).
		Group("training_type_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count achievements: %w", err)
	}
	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.TrainingTypeID] = r.Count
	}
	return counts, nil
}

// mandatoryRequirements loads the non-additional requirements of a level
// with their training types. Additional ("bonus") requirements never gate
// anything.
func mandatoryRequirements(tx *gorm.DB, levelID uint) ([]models.LevelRequirement, error) {
	var reqs []models.LevelRequirement
	err := tx.Where("level_id = ? AND is_additional = ?", levelID, false).
		Preload("TrainingType").
		Order("rank_order ASC").
		Find(&reqs).Error
	if err != nil {
		return nil, fmt.Errorf("load requirements: %w", err)
	}
	return reqs, nil
}

// NonExamRequirementsMet reports whether every non-exam requirement of the
// user's current level is covered by unconsumed achievements. A user
// without a current level has no prerequisites, so the answer is true.
// This is the guard that keeps exam credit from being banked out of order.
func (s *AchievementService) NonExamRequirementsMet(tx *gorm.DB, user *models.User) (bool, error) {
	if user.CurrentLevelID == nil {
		return true, nil
	}
	reqs, err := mandatoryRequirements(tx, *user.CurrentLevelID)
	if err != nil {
		return false, err
	}

	var nonExam []models.LevelRequirement
	for _, r := range reqs {
		if !r.TrainingType.IsExam() {
			nonExam = append(nonExam, r)
		}
	}
	if len(nonExam) == 0 {
		return true, nil
	}

	counts, err := s.UnconsumedCounts(tx, user.TenantID, user.ID)
	if err != nil {
		return false, err
	}
	for _, r := range nonExam {
		if counts[r.TrainingTypeID] < int64(r.RequiredCount) {
			return false, nil
		}
	}
	return true, nil
}

// Create records one achievement inside the given transaction. Exam
// achievements created while the user's non-exam prerequisites are still
// open are written already consumed: the write succeeds, the credit is
// unusable. The training type must belong to the tenant.
func (s *AchievementService) Create(tx *gorm.DB, tenantID uint, in CreateAchievementInput) (*models.Achievement, error) {
	var trainingType models.TrainingType
	err := tx.Where("id = ? AND tenant_id = ?", in.TrainingTypeID, tenantID).First(&trainingType).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("training type %d: %w", in.TrainingTypeID, ErrNotFound)
		}
		return nil, err
	}

	consumed := false
	if trainingType.IsExam() {
		var user models.User
		if err := tx.Where("id = ? AND tenant_id = ?", in.UserID, tenantID).First(&user).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, fmt.Errorf("user %d: %w", in.UserID, ErrNotFound)
			}
			return nil, err
		}
		met, err := s.NonExamRequirementsMet(tx, &user)
		if err != nil {
			return nil, err
		}
		// Premature exam: keep the record, void the credit.
		consumed = !met
	}

	achievement := models.Achievement{
		TenantID:       tenantID,
		UserID:         in.UserID,
		TrainingTypeID: in.TrainingTypeID,
		DogID:          in.DogID,
		TransactionID:  in.TransactionID,
		IsConsumed:     consumed,
	}
	if !in.Date.IsZero() {
		achievement.DateAchieved = in.Date
	}
	if err := tx.Create(&achievement).Error; err != nil {
		return nil, fmt.Errorf("create achievement: %w", err)
	}
	return &achievement, nil
}

// CreateUnlessDuplicate is Create with a duplicate guard keyed on
// user + training type + date. Billing the same appointment through
// different paths must not grant the completion twice. Returns the existing
// row with created=false when the guard trips.
func (s *AchievementService) CreateUnlessDuplicate(tx *gorm.DB, tenantID uint, in CreateAchievementInput) (*models.Achievement, bool, error) {
	var existing models.Achievement
	err := tx.Where(
		"tenant_id = ? AND user_id = ? AND training_type_id = ? AND date_achieved = ?",
		tenantID, in.UserID, in.TrainingTypeID, in.Date,
	).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, false, err
	}
	achievement, err := s.Create(tx, tenantID, in)
	if err != nil {
		return nil, false, err
	}
	return achievement, true, nil
}

// ListForUser returns a user's achievements, newest first.
func (s *AchievementService) ListForUser(tenantID, userID uint) ([]models.Achievement, error) {
	var achievements []models.Achievement
	err := s.DB.Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Preload("TrainingType").
		Order("date_achieved DESC").
		Find(&achievements).Error
	return achievements, err
}
