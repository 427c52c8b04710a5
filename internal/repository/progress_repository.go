package repository

import (
	"fincoach-backend/internal/db"
	"fincoach-backend/internal/model"
)

type ProgressRepository interface {
	GetProgress(userID, moduleID uint) (*model.UserLearningProgress, error)
	GetProgressByUser(userID uint) ([]model.UserLearningProgress, error)
	SaveProgress(progress *model.UserLearningProgress) error
	GetLedger(userID uint) (*model.UserXPLedger, error)
	SaveLedger(ledger *model.UserXPLedger) error
	CreateQuizResult(result *model.QuizResult) error
	GetQuizResults(userID uint) ([]model.QuizResult, error)
}

type progressRepository struct{}

func NewProgressRepository() ProgressRepository {
	return &progressRepository{}
}

func (r *progressRepository) GetProgress(userID, moduleID uint) (*model.UserLearningProgress, error) {
	var progress model.UserLearningProgress
	err := db.GetDB().Where("user_id = ? AND module_id = ?", userID, moduleID).
		First(&progress).Error
	if err != nil {
		return nil, translate(err)
	}
	return &progress, nil
}

func (r *progressRepository) GetProgressByUser(userID uint) ([]model.UserLearningProgress, error) {
	var rows []model.UserLearningProgress
	err := db.GetDB().Where("user_id = ?", userID).Find(&rows).Error
	return rows, err
}

func (r *progressRepository) SaveProgress(progress *model.UserLearningProgress) error {
	return db.GetDB().Save(progress).Error
}

func (r *progressRepository) GetLedger(userID uint) (*model.UserXPLedger, error) {
	var ledger model.UserXPLedger
	err := db.GetDB().Where("user_id = ?", userID).First(&ledger).Error
	if err != nil {
		return nil, translate(err)
	}
	return &ledger, nil
}

// SaveLedger persists the ledger with an optimistic version check. A
// concurrent writer bumps the version between our read and this write,
// so the guarded update matches zero rows and the caller gets
// ErrConflict to reread against. A first insert racing another one hits
// the user_id unique index instead, which translates the same way.
func (r *progressRepository) SaveLedger(ledger *model.UserXPLedger) error {
	if ledger.ID == 0 {
		if err := db.GetDB().Create(ledger).Error; err != nil {
			return translate(err)
		}
		return nil
	}

	res := db.GetDB().Model(&model.UserXPLedger{}).
		Where("id = ? AND version = ?", ledger.ID, ledger.Version).
		Updates(map[string]interface{}{
			"total_xp":         ledger.TotalXP,
			"current_level":    ledger.CurrentLevel,
			"xp_to_next_level": ledger.XPToNextLevel,
			"version":          ledger.Version + 1,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	ledger.Version++
	return nil
}

func (r *progressRepository) CreateQuizResult(result *model.QuizResult) error {
	return db.GetDB().Create(result).Error
}

func (r *progressRepository) GetQuizResults(userID uint) ([]model.QuizResult, error) {
	var results []model.QuizResult
	err := db.GetDB().Where("user_id = ?", userID).Order("created_at desc").Find(&results).Error
	return results, err
}
