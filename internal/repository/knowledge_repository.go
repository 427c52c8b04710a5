package repository

import (
	"fincoach-backend/internal/db"
	"fincoach-backend/internal/model"
)

type KnowledgeRepository interface {
	GetKnowledge(userID, conceptID uint) (*model.UserConceptKnowledge, error)
	GetAllKnowledge(userID uint) ([]model.UserConceptKnowledge, error)
	SaveKnowledge(knowledge *model.UserConceptKnowledge) error
	HasAssessmentEvent(userID uint, key string) (bool, error)
	CreateAssessmentEvent(event *model.AssessmentEvent) error
	GetProfile(userID uint) (*model.UserLearningProfile, error)
	SaveProfile(profile *model.UserLearningProfile) error
}

type knowledgeRepository struct{}

func NewKnowledgeRepository() KnowledgeRepository {
	return &knowledgeRepository{}
}

func (r *knowledgeRepository) GetKnowledge(userID, conceptID uint) (*model.UserConceptKnowledge, error) {
	var knowledge model.UserConceptKnowledge
	err := db.GetDB().Where("user_id = ? AND concept_id = ?", userID, conceptID).
		First(&knowledge).Error
	if err != nil {
		return nil, translate(err)
	}
	return &knowledge, nil
}

func (r *knowledgeRepository) GetAllKnowledge(userID uint) ([]model.UserConceptKnowledge, error) {
	var rows []model.UserConceptKnowledge
	err := db.GetDB().Where("user_id = ?", userID).Find(&rows).Error
	return rows, err
}

func (r *knowledgeRepository) SaveKnowledge(knowledge *model.UserConceptKnowledge) error {
	return db.GetDB().Save(knowledge).Error
}

func (r *knowledgeRepository) HasAssessmentEvent(userID uint, key string) (bool, error) {
	var count int64
	err := db.GetDB().Model(&model.AssessmentEvent{}).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		Count(&count).Error
	return count > 0, err
}

func (r *knowledgeRepository) CreateAssessmentEvent(event *model.AssessmentEvent) error {
	return db.GetDB().Create(event).Error
}

func (r *knowledgeRepository) GetProfile(userID uint) (*model.UserLearningProfile, error) {
	var profile model.UserLearningProfile
	err := db.GetDB().Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		return nil, translate(err)
	}
	return &profile, nil
}

func (r *knowledgeRepository) SaveProfile(profile *model.UserLearningProfile) error {
	return db.GetDB().Save(profile).Error
}
