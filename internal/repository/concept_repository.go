package repository

import (
	"fincoach-backend/internal/db"
	"fincoach-backend/internal/model"
)

type ConceptRepository interface {
	GetAll() ([]model.Concept, error)
	GetByID(conceptID uint) (*model.Concept, error)
	GetByIDs(conceptIDs []uint) ([]model.Concept, error)
	Create(concept *model.Concept) error
	Count() (int64, error)
	MaxDifficulty() (int, error)
}

type conceptRepository struct{}

func NewConceptRepository() ConceptRepository {
	return &conceptRepository{}
}

func (r *conceptRepository) GetAll() ([]model.Concept, error) {
	var concepts []model.Concept
	err := db.GetDB().Order("difficulty_level asc, id asc").Find(&concepts).Error
	return concepts, err
}

func (r *conceptRepository) GetByID(conceptID uint) (*model.Concept, error) {
	var concept model.Concept
	if err := db.GetDB().First(&concept, conceptID).Error; err != nil {
		return nil, translate(err)
	}
	return &concept, nil
}

func (r *conceptRepository) GetByIDs(conceptIDs []uint) ([]model.Concept, error) {
	var concepts []model.Concept
	if len(conceptIDs) == 0 {
		return concepts, nil
	}
	err := db.GetDB().Where("id IN ?", conceptIDs).Find(&concepts).Error
	return concepts, err
}

func (r *conceptRepository) Create(concept *model.Concept) error {
	return db.GetDB().Create(concept).Error
}

func (r *conceptRepository) Count() (int64, error) {
	var count int64
	err := db.GetDB().Model(&model.Concept{}).Count(&count).Error
	return count, err
}

func (r *conceptRepository) MaxDifficulty() (int, error) {
	var max int
	err := db.GetDB().Model(&model.Concept{}).
		Select("COALESCE(MAX(difficulty_level), 10)").Scan(&max).Error
	return max, err
}
