package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/danastri/meetscribe/internal/models"
)

type UserRepository interface {
	Insert(ctx context.Context, u *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

type userRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Insert(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var row models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).Take(&row).Error
	return &row, err
}

func (r *userRepo) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var row models.User
	err := r.db.WithContext(ctx).First(&row, id).Error
	return &row, err
}
