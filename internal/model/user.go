package model

import (
	"time"
)

// User 用户表
// 注册后创建，业务范围内不做物理删除
type User struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email       string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"email"`
	Username    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	FullName    string    `gorm:"type:varchar(128);not null" json:"full_name"`
	Password    string    `gorm:"type:varchar(128);not null" json:"-"` // bcrypt 哈希，永不下发
	PhoneNumber string    `gorm:"type:varchar(32)" json:"phone_number,omitempty"`
	Avatar      string    `gorm:"type:varchar(256)" json:"avatar,omitempty"`
	Bio         string    `gorm:"type:varchar(256)" json:"bio,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "user"
}

// UserBrief 用户摘要
// 消息、账单等对外载荷中附带的发送者快照，避免暴露完整用户信息
type UserBrief struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Avatar   string `json:"avatar,omitempty"`
}

// Brief 返回用户摘要
func (u *User) Brief() UserBrief {
	return UserBrief{
		ID:       u.ID,
		Username: u.Username,
		FullName: u.FullName,
		Avatar:   u.Avatar,
	}
}

// PasswordReset 密码重置令牌表
type PasswordReset struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	Token     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"token"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	Used      bool      `gorm:"not null;default:false" json:"used"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (PasswordReset) TableName() string {
	return "password_reset"
}
