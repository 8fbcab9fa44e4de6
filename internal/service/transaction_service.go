package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/akin525/bills-ledger/internal/config"
	"github.com/akin525/bills-ledger/internal/event"
	"github.com/akin525/bills-ledger/internal/infrastructure/lock"
	"github.com/akin525/bills-ledger/internal/model"
	"github.com/akin525/bills-ledger/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrSelfTransfer            = errors.New("不能给自己转账")
	ErrTransactionAccessDenied = errors.New("无权查看该转账记录")
)

type TransactionService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	dispatcher  *event.Dispatcher

	transactionRepo *repository.TransactionRepository
	billRepo        *repository.BillRepository
	userRepo        *repository.UserRepository
	billService     *BillService
}

func NewTransactionService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, dispatcher *event.Dispatcher, billService *BillService) *TransactionService {
	return &TransactionService{
		db:              db,
		redisClient:     redisClient,
		cfg:             cfg,
		dispatcher:      dispatcher,
		transactionRepo: repository.NewTransactionRepository(db),
		billRepo:        repository.NewBillRepository(db),
		userRepo:        repository.NewUserRepository(db),
		billService:     billService,
	}
}

type CreateTransactionRequest struct {
	ReceiverID  int64   `json:"receiver_id" binding:"required"`
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
	BillID      *int64  `json:"bill_id"`
}

// CreateTransaction 创建转账
//
// bill_id 非空时是账单还款：转账落库与参与人结算在同一事务、同一把账单锁内，
// 二者要么都成立要么都不成立。收款人必须是账单创建者
func (s *TransactionService) CreateTransaction(ctx context.Context, senderID int64, req *CreateTransactionRequest) (*model.Transaction, error) {
	if req.ReceiverID == senderID {
		return nil, ErrSelfTransfer
	}
	if _, err := s.userRepo.GetByID(ctx, req.ReceiverID); err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = "NGN"
	}
	txn := &model.Transaction{
		Reference:   "TXN-" + uuid.NewString(),
		SenderID:    senderID,
		ReceiverID:  req.ReceiverID,
		Amount:      req.Amount,
		Currency:    currency,
		Description: req.Description,
		Type:        model.TransactionTypeDirectTransfer,
		Status:      model.TransactionStatusCompleted,
		BillID:      req.BillID,
	}

	if req.BillID == nil {
		if err := s.transactionRepo.Create(ctx, nil, txn); err != nil {
			return nil, fmt.Errorf("创建转账失败: %w", err)
		}
	} else {
		txn.Type = model.TransactionTypeBillPayment
		if err := s.createBillPayment(ctx, senderID, req, txn); err != nil {
			return nil, err
		}
	}

	s.notifyReceiver(ctx, txn)

	log.Printf("转账成功: reference=%s, sender=%d, receiver=%d, amount=%.2f",
		txn.Reference, senderID, req.ReceiverID, req.Amount)
	return s.transactionRepo.GetByID(ctx, txn.ID)
}

func (s *TransactionService) createBillPayment(ctx context.Context, senderID int64, req *CreateTransactionRequest, txn *model.Transaction) error {
	billID := *req.BillID
	bill, err := s.billRepo.GetByID(ctx, billID)
	if err != nil {
		return err
	}
	if bill.CreatorID != req.ReceiverID {
		return errors.New("账单还款的收款人必须是账单创建者")
	}

	settleLock := lock.NewSettleLock(s.redisClient, billID, uuid.NewString())
	if err := settleLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer settleLock.Unlock(ctx)

	var (
		settledBill *model.Bill
		newStatus   string
	)
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.transactionRepo.Create(ctx, tx, txn); err != nil {
			return fmt.Errorf("创建转账失败: %w", err)
		}
		settledBill, _, newStatus, err = s.billService.settleParticipant(ctx, tx, billID, senderID, req.Amount)
		return err
	})
	if err != nil {
		return err
	}

	s.billService.notifyPayment(ctx, settledBill, req.Amount, newStatus, senderID)
	return nil
}

// notifyReceiver 收款人在线直推 transaction_received，离线落通知
func (s *TransactionService) notifyReceiver(ctx context.Context, txn *model.Transaction) {
	err := s.dispatcher.Dispatch(ctx, nil, &event.Event{
		Kind:       event.KindTransaction,
		Key:        txn.Reference,
		Recipients: []int64{txn.ReceiverID},
		Title:      "收到转账",
		Message:    fmt.Sprintf("你收到一笔转账 %.2f %s", txn.Amount, txn.Currency),
		NotifyType: model.NotificationTypeTransaction,
		Metadata: map[string]interface{}{
			"transaction_id": txn.ID,
			"reference":      txn.Reference,
			"sender_id":      txn.SenderID,
		},
		LiveEvent:   "transaction_received",
		LivePayload: txn,
	})
	if err != nil {
		log.Printf("转账事件派发失败: reference=%s, err=%v", txn.Reference, err)
	}
}

// GetTransaction 仅转账双方可见
func (s *TransactionService) GetTransaction(ctx context.Context, id, userID int64) (*model.Transaction, error) {
	txn, err := s.transactionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if txn.SenderID != userID && txn.ReceiverID != userID {
		return nil, ErrTransactionAccessDenied
	}
	return txn, nil
}

func (s *TransactionService) ListTransactions(ctx context.Context, userID int64, txType, status string, page, pageSize int) ([]*model.Transaction, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return s.transactionRepo.ListByUser(ctx, userID, txType, status, page, pageSize)
}

// CancelTransaction 取消转账，只有发起人、只有 PENDING 状态可取消
func (s *TransactionService) CancelTransaction(ctx context.Context, id, userID int64) error {
	return s.transactionRepo.Cancel(ctx, id, userID)
}

type TransactionStats struct {
	TotalSent     float64 `json:"total_sent"`
	TotalReceived float64 `json:"total_received"`
	SentCount     int64   `json:"sent_count"`
	ReceivedCount int64   `json:"received_count"`
}

func (s *TransactionService) GetStats(ctx context.Context, userID int64) (*TransactionStats, error) {
	sent, received, sentCount, receivedCount, err := s.transactionRepo.SumCompletedByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &TransactionStats{
		TotalSent:     sent,
		TotalReceived: received,
		SentCount:     sentCount,
		ReceivedCount: receivedCount,
	}, nil
}
