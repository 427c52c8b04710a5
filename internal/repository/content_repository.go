package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"fincoach-backend/internal/db"
	"fincoach-backend/internal/model"
)

type ContentRepository interface {
	EnqueueEntries(entries []model.ContentQueueEntry) error
	GetQueueHashes(userID uint) ([]string, error)
	GetHistoryHashes(userID uint) ([]string, error)
	CreateHistoryEntry(entry *model.ContentHistoryEntry) error
	GetUndeployedTop(userID uint, limit int) ([]model.ContentQueueEntry, error)
	Deploy(entry *model.ContentQueueEntry, module *model.LearningModule) (bool, error)
	GetModule(moduleID uint) (*model.LearningModule, error)
	GetModulesByUser(userID uint) ([]model.LearningModule, error)
	CountQueue(userID uint, deployed bool) (int64, error)
	CountActiveModules(userID uint) (int64, error)
	LatestQueueEntryAt(userID uint) (*time.Time, error)
}

type contentRepository struct{}

func NewContentRepository() ContentRepository {
	return &contentRepository{}
}

func (r *contentRepository) EnqueueEntries(entries []model.ContentQueueEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return db.GetDB().Create(&entries).Error
}

func (r *contentRepository) GetQueueHashes(userID uint) ([]string, error) {
	var hashes []string
	err := db.GetDB().Model(&model.ContentQueueEntry{}).
		Where("user_id = ?", userID).
		Pluck("content_hash", &hashes).Error
	return hashes, err
}

func (r *contentRepository) GetHistoryHashes(userID uint) ([]string, error) {
	var hashes []string
	err := db.GetDB().Model(&model.ContentHistoryEntry{}).
		Where("user_id = ?", userID).
		Pluck("content_hash", &hashes).Error
	return hashes, err
}

func (r *contentRepository) CreateHistoryEntry(entry *model.ContentHistoryEntry) error {
	return db.GetDB().Create(entry).Error
}

func (r *contentRepository) GetUndeployedTop(userID uint, limit int) ([]model.ContentQueueEntry, error) {
	var entries []model.ContentQueueEntry
	err := db.GetDB().
		Where("user_id = ? AND is_deployed = ?", userID, false).
		Order("priority desc, id asc").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// Deploy flips the queue entry's one-way deployed flag and materializes
// the module in a single transaction. The is_deployed guard makes the
// flip a compare-and-set: a second concurrent deploy of the same entry
// matches zero rows and returns false without error.
func (r *contentRepository) Deploy(entry *model.ContentQueueEntry, module *model.LearningModule) (bool, error) {
	deployed := false
	err := db.GetDB().Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.ContentQueueEntry{}).
			Where("id = ? AND is_deployed = ?", entry.ID, false).
			Update("is_deployed", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Create(module).Error; err != nil {
			return err
		}
		deployed = true
		return nil
	})
	return deployed, err
}

func (r *contentRepository) GetModule(moduleID uint) (*model.LearningModule, error) {
	var module model.LearningModule
	if err := db.GetDB().First(&module, moduleID).Error; err != nil {
		return nil, translate(err)
	}
	return &module, nil
}

func (r *contentRepository) GetModulesByUser(userID uint) ([]model.LearningModule, error) {
	var modules []model.LearningModule
	err := db.GetDB().Where("user_id = ?", userID).Order("created_at desc").Find(&modules).Error
	return modules, err
}

func (r *contentRepository) CountQueue(userID uint, deployed bool) (int64, error) {
	var count int64
	err := db.GetDB().Model(&model.ContentQueueEntry{}).
		Where("user_id = ? AND is_deployed = ?", userID, deployed).
		Count(&count).Error
	return count, err
}

// CountActiveModules counts deployed AI-generated modules the user has
// not completed yet.
func (r *contentRepository) CountActiveModules(userID uint) (int64, error) {
	var count int64
	err := db.GetDB().Model(&model.LearningModule{}).
		Where("learning_modules.user_id = ? AND learning_modules.source = ?", userID, "ai_generated").
		Where(`NOT EXISTS (
			SELECT 1 FROM user_learning_progresses p
			WHERE p.module_id = learning_modules.id
			  AND p.user_id = learning_modules.user_id
			  AND p.status = ?)`, model.ProgressCompleted).
		Count(&count).Error
	return count, err
}

func (r *contentRepository) LatestQueueEntryAt(userID uint) (*time.Time, error) {
	var entry model.ContentQueueEntry
	err := db.GetDB().Where("user_id = ?", userID).
		Order("created_at desc").
		First(&entry).Error
	if err != nil {
		if errors.Is(translate(err), ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry.CreatedAt, nil
}
