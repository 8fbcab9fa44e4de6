package model

import (
	"time"
)

const (
	TransactionTypeDirectTransfer = "DIRECT_TRANSFER" // 好友间直接转账
	TransactionTypeBillPayment    = "BILL_PAYMENT"    // 账单支付
)

const (
	TransactionStatusPending   = "PENDING"
	TransactionStatusCompleted = "COMPLETED"
	TransactionStatusCancelled = "CANCELLED"
)

// Transaction 转账记录表
//
// 【重要】流水表设计原则：
// 1. COMPLETED 后不可修改 —— 只有 PENDING 状态可以流转到 CANCELLED
// 2. reference 全局唯一 —— 便于对账与幂等
// 3. 关联账单的转账（bill_id 非空）必须与参与人结算在同一事务内落库
type Transaction struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Reference   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"reference"`
	SenderID    int64     `gorm:"index;not null" json:"sender_id"`
	ReceiverID  int64     `gorm:"index;not null" json:"receiver_id"`
	Amount      float64   `gorm:"not null" json:"amount"`
	Currency    string    `gorm:"type:varchar(8);not null;default:NGN" json:"currency"`
	Description string    `gorm:"type:varchar(256)" json:"description,omitempty"`
	Type        string    `gorm:"type:varchar(20);not null" json:"type"`
	Status      string    `gorm:"type:varchar(20);index;not null" json:"status"`
	BillID      *int64    `gorm:"index" json:"bill_id,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Sender   *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Receiver *User `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
	Bill     *Bill `gorm:"foreignKey:BillID" json:"bill,omitempty"`
}

func (Transaction) TableName() string {
	return "transaction"
}
