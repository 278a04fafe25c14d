package repository

import (
	"context"

	"github.com/nexhr/sales-api/internal/domain"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// ListByDepartment returns active users in a department
func (r *UserRepository) ListByDepartment(ctx context.Context, department string) ([]domain.User, error) {
	var users []domain.User
	err := r.db.WithContext(ctx).
		Where("department = ? AND is_active = ?", department, true).
		Order("username ASC").
		Find(&users).Error
	return users, err
}
