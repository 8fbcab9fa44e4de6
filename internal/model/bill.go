package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	BillStatusPending       = "PENDING"
	BillStatusPartiallyPaid = "PARTIALLY_PAID"
	BillStatusPaid          = "PAID"
	BillStatusCancelled     = "CANCELLED"
	BillStatusOverdue       = "OVERDUE"
)

// AmountTolerance 金额校验容差
// 参与人金额之和与总额允许的最大偏差
const AmountTolerance = 0.01

// ValidBillStatusTransitions 账单状态机
// CANCELLED 和 PAID 是终态，不允许再流转
// OVERDUE 由定时任务设置，此后只能通过全额结清流转到 PAID，或被创建者取消
var ValidBillStatusTransitions = map[string][]string{
	BillStatusPending:       {BillStatusPartiallyPaid, BillStatusPaid, BillStatusCancelled, BillStatusOverdue},
	BillStatusPartiallyPaid: {BillStatusPaid, BillStatusCancelled, BillStatusOverdue},
	BillStatusOverdue:       {BillStatusPaid, BillStatusCancelled},
}

// CanBillTransitionTo 校验账单状态流转是否合法
func CanBillTransitionTo(currentStatus, targetStatus string) bool {
	if currentStatus == targetStatus {
		return false
	}
	allowedStatuses, exists := ValidBillStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// Bill 账单表
// status 只能由结算逻辑或创建者的显式操作修改
type Bill struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	BillNo         string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"bill_no"`
	CreatorID      int64      `gorm:"index;not null" json:"creator_id"`
	ConversationID int64      `gorm:"index" json:"conversation_id,omitempty"`
	Title          string     `gorm:"type:varchar(128);not null" json:"title"`
	Description    string     `gorm:"type:varchar(512)" json:"description,omitempty"`
	TotalAmount    float64    `gorm:"not null" json:"total_amount"`
	Currency       string     `gorm:"type:varchar(8);not null;default:NGN" json:"currency"`
	Status         string     `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Creator      *User             `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Participants []BillParticipant `gorm:"foreignKey:BillID" json:"participants,omitempty"`
}

func (Bill) TableName() string {
	return "bill"
}

// BillParticipant 账单参与人表
// 不变量：is_paid == (paid_amount >= amount)，每次支付后必须维持
type BillParticipant struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	BillID     int64      `gorm:"uniqueIndex:uk_bill_user;not null" json:"bill_id"`
	UserID     int64      `gorm:"uniqueIndex:uk_bill_user;not null" json:"user_id"`
	Amount     float64    `gorm:"not null" json:"amount"`
	PaidAmount float64    `gorm:"not null;default:0" json:"paid_amount"`
	IsPaid     bool       `gorm:"not null;default:false" json:"is_paid"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (BillParticipant) TableName() string {
	return "bill_participant"
}

var (
	ErrAlreadyPaid    = errors.New("该参与人已完成支付")
	ErrInvalidPayment = errors.New("支付金额必须大于 0")
	ErrAmountMismatch = errors.New("参与人金额之和与账单总额不一致")
)

// ApplyPayment 把一笔支付增量应用到参与人
//
// 【关键点】paid_at 只在 is_paid 首次翻转为 true 时记录
// 已支付的参与人再次调用会返回 ErrAlreadyPaid，由调用方转换为冲突错误，
// 绝不静默重复累加
func (p *BillParticipant) ApplyPayment(amount float64, now time.Time) error {
	if amount <= 0 {
		return ErrInvalidPayment
	}
	if p.IsPaid {
		return ErrAlreadyPaid
	}

	p.PaidAmount += amount
	if p.PaidAmount >= p.Amount {
		p.IsPaid = true
		p.PaidAt = &now
	}
	return nil
}

// DeriveBillStatus 根据参与人支付状态推导账单状态
//
// 推导规则：全部已付 -> PAID；部分已付 -> PARTIALLY_PAID；否则保持现状
//
// 【关键点】终态保护：CANCELLED 不会被推导覆盖；
// OVERDUE 只有在全部参与人结清时才被改写为 PAID，部分支付不会清掉逾期标记。
// 重复推导是幂等的，两次推导结果一致
func DeriveBillStatus(currentStatus string, participants []BillParticipant) string {
	if currentStatus == BillStatusCancelled || currentStatus == BillStatusPaid {
		return currentStatus
	}
	if len(participants) == 0 {
		return currentStatus
	}

	allPaid := true
	anyPaid := false
	for _, p := range participants {
		if p.IsPaid {
			anyPaid = true
		} else {
			allPaid = false
		}
	}

	if allPaid {
		return BillStatusPaid
	}
	if currentStatus == BillStatusOverdue {
		return currentStatus
	}
	if anyPaid {
		return BillStatusPartiallyPaid
	}
	return currentStatus
}

// ValidateParticipantAmounts 校验参与人金额之和等于账单总额（允许 0.01 容差）
func ValidateParticipantAmounts(totalAmount float64, participants []BillParticipant) error {
	if len(participants) == 0 {
		return errors.New("账单至少需要一个参与人")
	}

	var sum float64
	for _, p := range participants {
		if p.Amount <= 0 {
			return fmt.Errorf("参与人 %d 的金额必须大于 0", p.UserID)
		}
		sum += p.Amount
	}

	if math.Abs(sum-totalAmount) > AmountTolerance {
		return fmt.Errorf("%w: %.2f != %.2f", ErrAmountMismatch, sum, totalAmount)
	}
	return nil
}
