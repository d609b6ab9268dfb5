package database

import (
	"context"
	"errors"

	"github.com/xelth-com/esealgo/internal/apperr"
	"github.com/xelth-com/esealgo/internal/models"
	"gorm.io/gorm"
)

// CreateUser inserts a new account
func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	if err := db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Validation("user already exists with this email")
		}
		return apperr.Persistence(err, "failed to create user")
	}
	return nil
}

// GetUser loads a user by id
func (db *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	if err := checkID("user", id); err != nil {
		return nil, err
	}
	var user models.User
	err := db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, translate(err, "user", id)
	}
	return &user, nil
}

// GetUserByEmail loads a user by normalized email
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, translate(err, "user", email)
	}
	return &user, nil
}
