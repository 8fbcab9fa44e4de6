package model

import (
	"fmt"
	"time"
)

const (
	ConversationTypeDirect = "DIRECT"
	ConversationTypeGroup  = "GROUP"
)

const (
	MessageTypeText        = "TEXT"
	MessageTypeImage       = "IMAGE"
	MessageTypeFile        = "FILE"
	MessageTypeBillRequest = "BILL_REQUEST"
	MessageTypeBillPayment = "BILL_PAYMENT"
	MessageTypeSystem      = "SYSTEM"
)

// ValidMessageType 校验消息类型是否合法，非法类型回落到 TEXT
func ValidMessageType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile,
		MessageTypeBillRequest, MessageTypeBillPayment, MessageTypeSystem:
		return true
	}
	return false
}

// Conversation 会话表
// DIRECT 会话对同一对用户全局唯一，创建前必须先查询（见 DirectKey）
type Conversation struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Type          string     `gorm:"type:varchar(16);not null" json:"type"`
	Name          string     `gorm:"type:varchar(128)" json:"name,omitempty"`
	DirectKey     *string    `gorm:"type:varchar(64);uniqueIndex" json:"-"` // DIRECT 会话的无序用户对键，GROUP 为 NULL（避免空串撞唯一索引）
	LastMessage   string     `gorm:"type:varchar(512)" json:"last_message,omitempty"`
	LastMessageAt *time.Time `gorm:"index" json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
}

func (Conversation) TableName() string {
	return "conversation"
}

// DirectConversationKey 生成 DIRECT 会话的无序用户对键
// 同一对用户无论谁发起，得到的键相同，配合唯一索引保证不会重复建会话
func DirectConversationKey(userA, userB int64) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%d:%d", userA, userB)
}

// ConversationParticipant 会话参与人表
type ConversationParticipant struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID int64      `gorm:"uniqueIndex:uk_conv_user;not null" json:"conversation_id"`
	UserID         int64      `gorm:"uniqueIndex:uk_conv_user;not null" json:"user_id"`
	LastReadAt     *time.Time `json:"last_read_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (ConversationParticipant) TableName() string {
	return "conversation_participant"
}

// Message 消息表
// 只追加，不修改 —— 消息创建的副作用是刷新会话的 last_message / last_message_at
type Message struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID int64     `gorm:"index;not null" json:"conversation_id"`
	SenderID       int64     `gorm:"index;not null" json:"sender_id"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	Type           string    `gorm:"type:varchar(20);not null;default:TEXT" json:"type"`
	Attachments    string    `gorm:"type:text" json:"attachments,omitempty"` // JSON 数组字符串
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

func (Message) TableName() string {
	return "message"
}
