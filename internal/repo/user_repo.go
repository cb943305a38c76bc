package repo

import (
	"context"

	"github.com/go-orz/orz"
	"github.com/vendops/vendwatch/internal/models"
	"gorm.io/gorm"
)

type UserRepo struct {
	orz.Repository[models.User, string]
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{
		Repository: orz.NewRepository[models.User, string](db),
		db:         db,
	}
}

// FindAdmins 查询全部管理员用户
func (r *UserRepo) FindAdmins(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("is_admin = ?", true).
		Find(&users).Error
	return users, err
}
