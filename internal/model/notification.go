package model

import (
	"time"
)

const (
	NotificationTypeMessage        = "MESSAGE"
	NotificationTypeBillCreated    = "BILL_CREATED"
	NotificationTypeBillPayment    = "BILL_PAYMENT"
	NotificationTypeBillOverdue    = "BILL_OVERDUE"
	NotificationTypeTransaction    = "TRANSACTION"
	NotificationTypeFriendRequest  = "FRIEND_REQUEST"
	NotificationTypeFriendAccepted = "FRIEND_ACCEPTED"
)

// Notification 通知表
// 接收人离线时由派发器落库（见 internal/event），metadata 携带可跳转到
// 源实体的标识（bill_id / transaction_id / conversation_id+message_id 等）
type Notification struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	Title     string    `gorm:"type:varchar(128);not null" json:"title"`
	Message   string    `gorm:"type:varchar(512);not null" json:"message"`
	Type      string    `gorm:"type:varchar(32);not null" json:"type"`
	Metadata  string    `gorm:"type:text" json:"metadata,omitempty"` // JSON 字符串
	IsRead    bool      `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Notification) TableName() string {
	return "notification"
}
