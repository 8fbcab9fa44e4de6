package repository

import (
	"context"
	"errors"

	"github.com/akin525/bills-ledger/internal/model"

	"gorm.io/gorm"
)

var (
	ErrTransactionNotFound  = errors.New("转账记录不存在")
	ErrTransactionImmutable = errors.New("只有待处理的转账可以取消")
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*model.Transaction, error) {
	var trans model.Transaction
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Preload("Receiver").
		Preload("Bill").
		First(&trans, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &trans, nil
}

// ListByUser 分页查询用户收支记录，可按类型与状态过滤
func (r *TransactionRepository) ListByUser(ctx context.Context, userID int64, txType, status string, page, pageSize int) ([]*model.Transaction, int64, error) {
	var transactions []*model.Transaction
	var total int64

	query := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("sender_id = ? OR receiver_id = ?", userID, userID)
	if txType != "" {
		query = query.Where("type = ?", txType)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Preload("Sender").
		Preload("Receiver").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}

// Cancel 取消转账
// 只允许发送方把 PENDING 流转到 CANCELLED，COMPLETED 后不可变更
func (r *TransactionRepository) Cancel(ctx context.Context, id, senderID int64) error {
	result := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("id = ? AND sender_id = ? AND status = ?", id, senderID, model.TransactionStatusPending).
		Update("status", model.TransactionStatusCancelled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTransactionImmutable
	}
	return nil
}

// SumCompletedByUser 统计已完成转账的总收/总支
func (r *TransactionRepository) SumCompletedByUser(ctx context.Context, userID int64) (sent, received float64, sentCount, receivedCount int64, err error) {
	type row struct {
		Total float64
		Count int64
	}
	var out row

	err = r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Select("COALESCE(SUM(amount),0) AS total, COUNT(*) AS count").
		Where("sender_id = ? AND status = ?", userID, model.TransactionStatusCompleted).
		Scan(&out).Error
	if err != nil {
		return
	}
	sent, sentCount = out.Total, out.Count

	err = r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Select("COALESCE(SUM(amount),0) AS total, COUNT(*) AS count").
		Where("receiver_id = ? AND status = ?", userID, model.TransactionStatusCompleted).
		Scan(&out).Error
	if err != nil {
		return
	}
	received, receivedCount = out.Total, out.Count
	return
}
