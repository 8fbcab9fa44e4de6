package realtime

import (
	"encoding/json"
)

// 客户端 -> 服务端事件
const (
	EventJoinConversation   = "join_conversation"
	EventLeaveConversation  = "leave_conversation"
	EventSendMessage        = "send_message"
	EventTyping             = "typing"
	EventBillUpdate         = "bill_update"
	EventTransactionCreated = "transaction_created"
	EventFriendRequestSent  = "friend_request_sent"
)

// 服务端 -> 客户端事件
const (
	EventUserStatusChanged     = "user_status_changed"
	EventNewMessage            = "new_message"
	EventUserTyping            = "user_typing"
	EventBillUpdated           = "bill_updated"
	EventTransactionReceived   = "transaction_received"
	EventFriendRequestReceived = "friend_request_received"
	EventError                 = "error"
)

// InboundFrame 入站帧，data 延迟到各事件处理器再解析
type InboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Frame 出站帧
type Frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// ============================================================
// 入站载荷
// ============================================================

type JoinConversationData struct {
	ConversationID int64 `json:"conversation_id"`
}

type SendMessageData struct {
	ConversationID int64    `json:"conversation_id"`
	Content        string   `json:"content"`
	Type           string   `json:"type,omitempty"`
	Attachments    []string `json:"attachments,omitempty"`
}

type TypingData struct {
	ConversationID int64 `json:"conversation_id"`
	IsTyping       bool  `json:"is_typing"`
}

type BillUpdateData struct {
	BillID int64  `json:"bill_id"`
	Status string `json:"status"`
}

type TransactionCreatedData struct {
	TransactionID int64 `json:"transaction_id"`
}

type FriendRequestSentData struct {
	ReceiverID int64 `json:"receiver_id"`
}

// ============================================================
// 出站载荷
// ============================================================

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

type UserStatusData struct {
	UserID int64  `json:"user_id"`
	Status string `json:"status"`
}

type UserTypingData struct {
	UserID         int64 `json:"user_id"`
	ConversationID int64 `json:"conversation_id"`
	IsTyping       bool  `json:"is_typing"`
}

type BillUpdatedData struct {
	BillID    int64  `json:"bill_id"`
	Status    string `json:"status"`
	UpdatedBy int64  `json:"updated_by"`
}

type FriendRequestReceivedData struct {
	SenderID int64 `json:"sender_id"`
}

type ErrorData struct {
	Message string `json:"message"`
}
