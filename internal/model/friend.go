package model

import (
	"time"
)

const (
	FriendRequestStatusPending  = "PENDING"
	FriendRequestStatusAccepted = "ACCEPTED"
	FriendRequestStatusRejected = "REJECTED"
)

// FriendRequest 好友请求表
// PENDING 状态只能被接收方处理一次，重复处理返回冲突
type FriendRequest struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID   int64     `gorm:"index;not null" json:"sender_id"`
	ReceiverID int64     `gorm:"index;not null" json:"receiver_id"`
	Status     string    `gorm:"type:varchar(16);index;not null;default:PENDING" json:"status"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Sender   *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Receiver *User `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
}

func (FriendRequest) TableName() string {
	return "friend_request"
}

// Friend 好友关系表
// 接受请求时成对写入（双向各一行），必须在同一事务内完成，
// 任何情况下不允许只存在单向关系
type Friend struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"uniqueIndex:uk_user_friend;not null" json:"user_id"`
	FriendID  int64     `gorm:"uniqueIndex:uk_user_friend;not null" json:"friend_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	FriendUser *User `gorm:"foreignKey:FriendID" json:"friend,omitempty"`
}

func (Friend) TableName() string {
	return "friend"
}
