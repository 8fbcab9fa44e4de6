package repository

import (
	"context"
	"errors"
	"time"

	"github.com/akin525/bills-ledger/internal/model"

	"gorm.io/gorm"
)

var (
	ErrBillNotFound        = errors.New("账单不存在")
	ErrBillStatusInvalid   = errors.New("账单状态流转不合法")
	ErrParticipantNotFound = errors.New("不是该账单的参与人")
)

type BillRepository struct {
	db *gorm.DB
}

func NewBillRepository(db *gorm.DB) *BillRepository {
	return &BillRepository{db: db}
}

// Create 创建账单（参与人必须和账单同事务写入，由调用方传入 tx）
func (r *BillRepository) Create(ctx context.Context, tx *gorm.DB, bill *model.Bill) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(bill).Error
}

func (r *BillRepository) GetByID(ctx context.Context, billID int64) (*model.Bill, error) {
	var bill model.Bill
	err := r.db.WithContext(ctx).
		Preload("Creator").
		Preload("Participants").
		Preload("Participants.User").
		First(&bill, billID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBillNotFound
		}
		return nil, err
	}
	return &bill, nil
}

// ListByUser 查询用户创建或参与的账单
func (r *BillRepository) ListByUser(ctx context.Context, userID int64, status string) ([]*model.Bill, error) {
	var bills []*model.Bill
	query := r.db.WithContext(ctx).
		Preload("Creator").
		Preload("Participants").
		Preload("Participants.User").
		Where("creator_id = ? OR id IN (?)",
			userID,
			r.db.Model(&model.BillParticipant{}).Select("bill_id").Where("user_id = ?", userID),
		)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("created_at DESC").Find(&bills).Error
	return bills, err
}

// UpdateStatus 带前置状态校验的状态更新
// WHERE 条件同时约束状态，RowsAffected == 0 说明已被并发修改或流转不合法
func (r *BillRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, billID int64, fromStatus, toStatus string) error {
	if !model.CanBillTransitionTo(fromStatus, toStatus) {
		return ErrBillStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}
	if toStatus == model.BillStatusPaid {
		now := time.Now()
		updates["paid_at"] = &now
	}

	result := tx.WithContext(ctx).
		Model(&model.Bill{}).
		Where("id = ? AND status = ?", billID, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBillStatusInvalid
	}
	return nil
}

func (r *BillRepository) Delete(ctx context.Context, billID int64) error {
	// 参与人随账单一并删除，保持同一事务
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("bill_id = ?", billID).Delete(&model.BillParticipant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Bill{}, billID).Error
	})
}

// ============================================================
// 参与人
// ============================================================

func (r *BillRepository) GetParticipant(ctx context.Context, tx *gorm.DB, billID, userID int64) (*model.BillParticipant, error) {
	if tx == nil {
		tx = r.db
	}
	var p model.BillParticipant
	err := tx.WithContext(ctx).
		Where("bill_id = ? AND user_id = ?", billID, userID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *BillRepository) GetParticipants(ctx context.Context, tx *gorm.DB, billID int64) ([]model.BillParticipant, error) {
	if tx == nil {
		tx = r.db
	}
	var parts []model.BillParticipant
	err := tx.WithContext(ctx).Where("bill_id = ?", billID).Find(&parts).Error
	return parts, err
}

// SaveParticipantPayment 写入结算结果（paid_amount / is_paid / paid_at）
func (r *BillRepository) SaveParticipantPayment(ctx context.Context, tx *gorm.DB, p *model.BillParticipant) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.BillParticipant{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"paid_amount": p.PaidAmount,
			"is_paid":     p.IsPaid,
			"paid_at":     p.PaidAt,
		}).Error
}

// ListParticipationsByUser 用户的所有参与记录（汇总用）
func (r *BillRepository) ListParticipationsByUser(ctx context.Context, userID int64) ([]model.BillParticipant, error) {
	var parts []model.BillParticipant
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&parts).Error
	return parts, err
}

// ListCreatedWithParticipants 用户创建的账单及参与人（汇总用）
func (r *BillRepository) ListCreatedWithParticipants(ctx context.Context, userID int64) ([]*model.Bill, error) {
	var bills []*model.Bill
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("creator_id = ?", userID).
		Find(&bills).Error
	return bills, err
}

// GetDueBills 查询已过期但仍可标记逾期的账单（定时任务用）
// 带出参与人，逾期通知需要按未支付参与人发送
func (r *BillRepository) GetDueBills(ctx context.Context, now time.Time, limit int) ([]*model.Bill, error) {
	var bills []*model.Bill
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("due_date IS NOT NULL AND due_date < ? AND status IN ?",
			now, []string{model.BillStatusPending, model.BillStatusPartiallyPaid}).
		Limit(limit).
		Find(&bills).Error
	return bills, err
}
