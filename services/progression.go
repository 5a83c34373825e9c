package services

import (
	"fmt"

	"dogschool-platform/models"

	"gorm.io/gorm"
)

// ProgressionService evaluates level-up eligibility against the achievement
// ledger and performs the level transition.
//
// Eligibility is two-phase on purpose: the non-exam requirements of the
// current level are checked before any exam requirement. A customer cannot
// skip ahead by banking exam completions before finishing the prerequisite
// training; the ledger enforces the same policy at exam-creation time.
type ProgressionService struct {
	DB           *gorm.DB
	Achievements *AchievementService
	Notifier     Notifier
}

func NewProgressionService(db *gorm.DB, achievements *AchievementService, notifier Notifier) *ProgressionService {
	return &ProgressionService{DB: db, Achievements: achievements, Notifier: notifier}
}

// NextLevel resolves the level with the smallest rank_order strictly above
// the given one, or nil when the ladder ends there.
func (s *ProgressionService) NextLevel(tx *gorm.DB, tenantID uint, currentRank int) (*models.Level, error) {
	var next models.Level
	err := tx.Where("tenant_id = ? AND rank_order > ?", tenantID, currentRank).
		Order("rank_order ASC").
		First(&next).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve next level: %w", err)
	}
	return &next, nil
}

// CheckEligibility reports whether the user can leave their current level.
func (s *ProgressionService) CheckEligibility(tenantID, userID uint) (bool, error) {
	var eligible bool
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		user, err := getUser(tx, tenantID, userID, false)
		if err != nil {
			return err
		}
		eligible, err = s.eligible(tx, user)
		return err
	})
	return eligible, err
}

func (s *ProgressionService) eligible(tx *gorm.DB, user *models.User) (bool, error) {
	// Unleveled users are placed manually, never promoted.
	if user.CurrentLevelID == nil {
		return false, nil
	}

	var current models.Level
	if err := tx.Where("id = ? AND tenant_id = ?", *user.CurrentLevelID, user.TenantID).First(&current).Error; err != nil {
		// A dangling level id (the level was deleted) reads as unleveled.
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, err
	}

	next, err := s.NextLevel(tx, user.TenantID, current.RankOrder)
	if err != nil {
		return false, err
	}
	if next == nil {
		return false, nil
	}

	reqs, err := mandatoryRequirements(tx, current.ID)
	if err != nil {
		return false, err
	}
	if len(reqs) == 0 {
		return true, nil
	}

	counts, err := s.Achievements.UnconsumedCounts(tx, user.TenantID, user.ID)
	if err != nil {
		return false, err
	}

	var examReqs []models.LevelRequirement
	for _, r := range reqs {
		if r.TrainingType.IsExam() {
			examReqs = append(examReqs, r)
			continue
		}
		if counts[r.TrainingTypeID] < int64(r.RequiredCount) {
			return false, nil
		}
	}
	for _, r := range examReqs {
		if counts[r.TrainingTypeID] < int64(r.RequiredCount) {
			return false, nil
		}
	}
	return true, nil
}

// PerformLevelUp re-validates eligibility and advances the user exactly one
// rank. Every unconsumed achievement of each required training type is
// consumed, including counts above required_count: surplus does not carry
// over. The consumption and the level change commit together or not at all.
func (s *ProgressionService) PerformLevelUp(tenantID, userID uint) (*models.User, error) {
	var user *models.User
	var next *models.Level

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		user, err = getUser(tx, tenantID, userID, true)
		if err != nil {
			return err
		}

		eligible, err := s.eligible(tx, user)
		if err != nil {
			return err
		}
		if !eligible {
			return ErrNotEligible
		}

		var current models.Level
		if err := tx.First(&current, "id = ?", *user.CurrentLevelID).Error; err != nil {
			return err
		}
		next, err = s.NextLevel(tx, tenantID, current.RankOrder)
		if err != nil {
			return err
		}
		// eligible() already screened out the top of the ladder.
		if next == nil {
			return ErrNotEligible
		}

		reqs, err := mandatoryRequirements(tx, current.ID)
		if err != nil {
			return err
		}
		for _, r := range reqs {
			err := tx.Model(&models.Achievement{}).
				Where("tenant_id = ? AND user_id = ? AND training_type_id = ? AND is_consumed = ?",
					tenantID, userID, r.TrainingTypeID, false).
				Update("is_consumed", true).Error
			if err != nil {
				return fmt.Errorf("consume achievements: %w", err)
			}
		}

		user.CurrentLevelID = &next.ID
		if err := tx.Model(user).Update("current_level_id", next.ID).Error; err != nil {
			return fmt.Errorf("advance level: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.Notify(tenantID, userID, NotifyCategoryLevel,
		"Level aufgestiegen",
		fmt.Sprintf("Glückwunsch! Du bist jetzt im Level %q.", next.Name),
		"/profile",
		map[string]string{"level": next.Name})

	return user, nil
}

// SetLevel places a user on a level directly (staff override). No
// achievements are consumed and no eligibility applies; this is the escape
// hatch for imports and corrections.
func (s *ProgressionService) SetLevel(tenantID, userID uint, levelID *uint) (*models.User, error) {
	var user *models.User
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		user, err = getUser(tx, tenantID, userID, true)
		if err != nil {
			return err
		}
		if levelID != nil {
			var level models.Level
			if err := tx.Where("id = ? AND tenant_id = ?", *levelID, tenantID).First(&level).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return fmt.Errorf("level %d: %w", *levelID, ErrNotFound)
				}
				return err
			}
		}
		user.CurrentLevelID = levelID
		return tx.Model(user).Update("current_level_id", levelID).Error
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}
