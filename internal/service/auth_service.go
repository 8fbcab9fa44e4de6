package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/akin525/bills-ledger/internal/config"
	"github.com/akin525/bills-ledger/internal/model"
	"github.com/akin525/bills-ledger/internal/repository"
	"github.com/akin525/bills-ledger/pkg/idgen"
	"github.com/akin525/bills-ledger/pkg/token"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrInvalidCredentials = errors.New("邮箱或密码错误")

type AuthService struct {
	db       *gorm.DB
	cfg      *config.Config
	userRepo *repository.UserRepository
}

func NewAuthService(db *gorm.DB, cfg *config.Config) *AuthService {
	return &AuthService{
		db:       db,
		cfg:      cfg,
		userRepo: repository.NewUserRepository(db),
	}
}

type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Username    string `json:"username" binding:"required,min=3,max=32"`
	FullName    string `json:"full_name" binding:"required"`
	Password    string `json:"password" binding:"required,min=8"`
	PhoneNumber string `json:"phone_number"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Register 注册新用户并直接签发令牌
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	exists, err := s.userRepo.ExistsByEmailOrUsername(ctx, req.Email, req.Username)
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	if exists {
		return nil, repository.ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("密码加密失败: %w", err)
	}

	user := &model.User{
		Email:       req.Email,
		Username:    req.Username,
		FullName:    req.FullName,
		Password:    string(hash),
		PhoneNumber: req.PhoneNumber,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}

	return s.issueToken(user)
}

// Login 校验密码并签发令牌
// 用户不存在与密码错误返回同一个错误，不向调用方泄露账号是否存在
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issueToken(user)
}

func (s *AuthService) issueToken(user *model.User) (*AuthResponse, error) {
	ttl := time.Duration(s.cfg.JWT.ExpireHours) * time.Hour
	t, err := token.Generate(s.cfg.JWT.Secret, user.ID, user.Email, user.Username, ttl)
	if err != nil {
		return nil, fmt.Errorf("签发令牌失败: %w", err)
	}
	return &AuthResponse{Token: t, User: user}, nil
}

func (s *AuthService) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

type UpdateProfileRequest struct {
	FullName    *string `json:"full_name"`
	PhoneNumber *string `json:"phone_number"`
	Avatar      *string `json:"avatar"`
	Bio         *string `json:"bio"`
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, req *UpdateProfileRequest) (*model.User, error) {
	updates := map[string]interface{}{}
	if req.FullName != nil {
		updates["full_name"] = *req.FullName
	}
	if req.PhoneNumber != nil {
		updates["phone_number"] = *req.PhoneNumber
	}
	if req.Avatar != nil {
		updates["avatar"] = *req.Avatar
	}
	if req.Bio != nil {
		updates["bio"] = *req.Bio
	}
	if len(updates) == 0 {
		return s.userRepo.GetByID(ctx, userID)
	}
	return s.userRepo.UpdateProfile(ctx, userID, updates)
}

// ChangePassword 已登录用户修改密码，必须先验证旧密码
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("密码加密失败: %w", err)
	}
	return s.userRepo.UpdatePassword(ctx, nil, userID, string(hash))
}

// ForgotPassword 生成密码重置令牌
// 邮箱不存在时静默成功，同样不泄露账号是否存在
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("查询用户失败: %w", err)
	}

	reset := &model.PasswordReset{
		UserID:    user.ID,
		Token:     idgen.GenerateResetToken(),
		ExpiresAt: time.Now().Add(time.Duration(s.cfg.Business.ResetTokenTTLHours) * time.Hour),
	}
	if err := s.userRepo.CreatePasswordReset(ctx, reset); err != nil {
		return fmt.Errorf("创建重置令牌失败: %w", err)
	}

	// TODO: 接入邮件网关后改为发信，当前只记日志
	log.Printf("密码重置令牌已生成: userID=%d, token=%s", user.ID, reset.Token)
	return nil
}

// ResetPassword 用重置令牌设置新密码，改密与令牌核销在同一事务
func (s *AuthService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	reset, err := s.userRepo.GetPasswordResetByToken(ctx, resetToken)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("密码加密失败: %w", err)
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.userRepo.UpdatePassword(ctx, tx, reset.UserID, string(hash)); err != nil {
			return err
		}
		return s.userRepo.MarkPasswordResetUsed(ctx, tx, reset.ID)
	})
}

// SearchUsers 按用户名 / 全名 / 邮箱模糊搜索，排除自己
func (s *AuthService) SearchUsers(ctx context.Context, selfID int64, query string, limit int) ([]*model.User, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	return s.userRepo.Search(ctx, selfID, query, limit)
}
