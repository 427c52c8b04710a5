package repository

import (
	"fincoach-backend/internal/db"
	"fincoach-backend/internal/model"
)

type UserRepository interface {
	GetAllUsers() ([]model.User, error)
	GetUserByID(userID uint) (*model.User, error)
	GetActiveGoals(userID uint) ([]model.UserGoal, error)
	GetAccountAggregate(userID uint) (*model.UserAccountAggregate, error)
}

type userRepository struct{}

func NewUserRepository() UserRepository {
	return &userRepository{}
}

func (r *userRepository) GetAllUsers() ([]model.User, error) {
	var users []model.User
	err := db.GetDB().Find(&users).Error
	return users, err
}

func (r *userRepository) GetUserByID(userID uint) (*model.User, error) {
	var user model.User
	if err := db.GetDB().First(&user, userID).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *userRepository) GetActiveGoals(userID uint) ([]model.UserGoal, error) {
	var goals []model.UserGoal
	err := db.GetDB().Where("user_id = ? AND is_active = ?", userID, true).Find(&goals).Error
	return goals, err
}

func (r *userRepository) GetAccountAggregate(userID uint) (*model.UserAccountAggregate, error) {
	var aggregate model.UserAccountAggregate
	err := db.GetDB().Where("user_id = ?", userID).First(&aggregate).Error
	if err != nil {
		return nil, translate(err)
	}
	return &aggregate, nil
}
