package model

import (
	"time"
)

const (
	OrgRoleAdmin  = "ADMIN"
	OrgRoleMember = "MEMBER"
)

// Organization 组织表
// 创建者自动成为 ADMIN 成员，且不可被移除、不可退出
type Organization struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"type:varchar(128);not null" json:"name"`
	Description string    `gorm:"type:varchar(512)" json:"description,omitempty"`
	Avatar      string    `gorm:"type:varchar(256)" json:"avatar,omitempty"`
	CreatorID   int64     `gorm:"index;not null" json:"creator_id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Creator *User                `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Members []OrganizationMember `gorm:"foreignKey:OrganizationID" json:"members,omitempty"`
}

func (Organization) TableName() string {
	return "organization"
}

// OrganizationMember 组织成员表
type OrganizationMember struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrganizationID int64     `gorm:"uniqueIndex:uk_org_user;not null" json:"organization_id"`
	UserID         int64     `gorm:"uniqueIndex:uk_org_user;not null" json:"user_id"`
	Role           string    `gorm:"type:varchar(16);not null;default:MEMBER" json:"role"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (OrganizationMember) TableName() string {
	return "organization_member"
}
