package repository

import (
	"context"
	"errors"
	"time"

	"github.com/akin525/bills-ledger/internal/model"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("用户不存在")
	ErrUserExists         = errors.New("邮箱或用户名已被占用")
	ErrResetTokenInvalid  = errors.New("重置令牌无效或已过期")
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ExistsByEmailOrUsername 注册前的唯一性预检
func (r *UserRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("email = ? OR username = ?", email, username).
		Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) UpdateProfile(ctx context.Context, userID int64, updates map[string]interface{}) (*model.User, error) {
	if len(updates) > 0 {
		err := r.db.WithContext(ctx).
			Model(&model.User{}).
			Where("id = ?", userID).
			Updates(updates).Error
		if err != nil {
			return nil, err
		}
	}
	return r.GetByID(ctx, userID)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, tx *gorm.DB, userID int64, passwordHash string) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Update("password", passwordHash).Error
}

// Search 按用户名/姓名/邮箱模糊搜索，排除自己
func (r *UserRepository) Search(ctx context.Context, selfID int64, query string, limit int) ([]*model.User, error) {
	var users []*model.User
	pattern := "%" + query + "%"
	err := r.db.WithContext(ctx).
		Where("id <> ?", selfID).
		Where("username LIKE ? OR full_name LIKE ? OR email LIKE ?", pattern, pattern, pattern).
		Limit(limit).
		Find(&users).Error
	return users, err
}

// ============================================================
// 密码重置令牌
// ============================================================

func (r *UserRepository) CreatePasswordReset(ctx context.Context, reset *model.PasswordReset) error {
	return r.db.WithContext(ctx).Create(reset).Error
}

func (r *UserRepository) GetPasswordResetByToken(ctx context.Context, token string) (*model.PasswordReset, error) {
	var reset model.PasswordReset
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&reset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResetTokenInvalid
		}
		return nil, err
	}
	if reset.Used || reset.ExpiresAt.Before(time.Now()) {
		return nil, ErrResetTokenInvalid
	}
	return &reset, nil
}

// MarkPasswordResetUsed 令牌一次性使用，重复消费返回失效错误
func (r *UserRepository) MarkPasswordResetUsed(ctx context.Context, tx *gorm.DB, id int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.PasswordReset{}).
		Where("id = ? AND used = ?", id, false).
		Update("used", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrResetTokenInvalid
	}
	return nil
}
