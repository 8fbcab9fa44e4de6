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
	"github.com/akin525/bills-ledger/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrBillAccessDenied = errors.New("无权访问该账单")
	ErrNotBillCreator   = errors.New("只有账单创建者可以执行该操作")
	ErrBillNotDeletable = errors.New("已有还款的账单不能删除")
)

type BillService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	dispatcher  *event.Dispatcher

	billRepo *repository.BillRepository
	convRepo *repository.ConversationRepository
	userRepo *repository.UserRepository
}

func NewBillService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, dispatcher *event.Dispatcher) *BillService {
	return &BillService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		dispatcher:  dispatcher,
		billRepo:    repository.NewBillRepository(db),
		convRepo:    repository.NewConversationRepository(db),
		userRepo:    repository.NewUserRepository(db),
	}
}

type BillParticipantInput struct {
	UserID int64   `json:"user_id" binding:"required"`
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

type CreateBillRequest struct {
	Title              string                 `json:"title" binding:"required,max=128"`
	Description        string                 `json:"description"`
	TotalAmount        float64                `json:"total_amount" binding:"required,gt=0"`
	Currency           string                 `json:"currency"`
	DueDate            *time.Time             `json:"due_date"`
	ConversationID     int64                  `json:"conversation_id"`
	CreateConversation bool                   `json:"create_conversation"`
	Participants       []BillParticipantInput `json:"participants" binding:"required,min=1"`
}

// CreateBill 创建账单
//
// 账单、参与人、（可选的）群会话在同一事务内落库；参与人通知也写入同一
// 事务，账单创建失败不会留下孤儿通知
func (s *BillService) CreateBill(ctx context.Context, creatorID int64, req *CreateBillRequest) (*model.Bill, error) {
	participants := make([]model.BillParticipant, 0, len(req.Participants))
	recipientIDs := make([]int64, 0, len(req.Participants))
	for _, p := range req.Participants {
		if p.UserID == creatorID {
			return nil, errors.New("创建者不能同时作为参与人")
		}
		participants = append(participants, model.BillParticipant{
			UserID: p.UserID,
			Amount: p.Amount,
		})
		recipientIDs = append(recipientIDs, p.UserID)
	}
	if err := model.ValidateParticipantAmounts(req.TotalAmount, participants); err != nil {
		return nil, err
	}

	for _, id := range recipientIDs {
		if _, err := s.userRepo.GetByID(ctx, id); err != nil {
			return nil, fmt.Errorf("参与人 %d 不存在: %w", id, err)
		}
	}

	currency := req.Currency
	if currency == "" {
		currency = "NGN"
	}

	bill := &model.Bill{
		BillNo:         idgen.GenerateBillNo(),
		CreatorID:      creatorID,
		ConversationID: req.ConversationID,
		Title:          req.Title,
		Description:    req.Description,
		TotalAmount:    req.TotalAmount,
		Currency:       currency,
		Status:         model.BillStatusPending,
		DueDate:        req.DueDate,
		Participants:   participants,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if req.CreateConversation && req.ConversationID == 0 {
			conv := &model.Conversation{
				Type: model.ConversationTypeGroup,
				Name: "Bill: " + req.Title,
			}
			memberIDs := append([]int64{creatorID}, recipientIDs...)
			if err := s.convRepo.CreateWithParticipants(ctx, tx, conv, memberIDs); err != nil {
				return fmt.Errorf("创建账单会话失败: %w", err)
			}
			bill.ConversationID = conv.ID
		}

		if err := s.billRepo.Create(ctx, tx, bill); err != nil {
			return fmt.Errorf("创建账单失败: %w", err)
		}

		// 账单创建属于非实时事件，在线与否都落通知
		return s.dispatcher.Dispatch(ctx, tx, &event.Event{
			Kind:       event.KindBill,
			Key:        bill.BillNo,
			Recipients: recipientIDs,
			Title:      "新账单",
			Message:    fmt.Sprintf("%s：%.2f %s", bill.Title, bill.TotalAmount, bill.Currency),
			NotifyType: model.NotificationTypeBillCreated,
			Metadata: map[string]interface{}{
				"bill_id": bill.ID,
				"bill_no": bill.BillNo,
			},
			AlwaysPersist: true,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("账单创建成功: billNo=%s, creator=%d, total=%.2f", bill.BillNo, creatorID, bill.TotalAmount)
	return s.billRepo.GetByID(ctx, bill.ID)
}

// GetBill 账单详情，仅创建者与参与人可见
func (s *BillService) GetBill(ctx context.Context, billID, userID int64) (*model.Bill, error) {
	bill, err := s.billRepo.GetByID(ctx, billID)
	if err != nil {
		return nil, err
	}
	if !s.canAccess(bill, userID) {
		return nil, ErrBillAccessDenied
	}
	return bill, nil
}

func (s *BillService) canAccess(bill *model.Bill, userID int64) bool {
	if bill.CreatorID == userID {
		return true
	}
	for _, p := range bill.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func (s *BillService) ListBills(ctx context.Context, userID int64, status string) ([]*model.Bill, error) {
	return s.billRepo.ListByUser(ctx, userID, status)
}

type PaymentResult struct {
	Bill        *model.Bill            `json:"bill"`
	Participant *model.BillParticipant `json:"participant"`
}

// MarkAsPaid 参与人上报一笔还款
//
// 整个结算在账单粒度的分布式锁内执行，并发还款串行化：
// 读参与人 -> 记账 -> 重读全部参与人 -> 推导账单状态 -> 条件更新。
// 状态推导基于同事务内的读取，锁保证两笔并发还款不会都看到旧快照
func (s *BillService) MarkAsPaid(ctx context.Context, billID, userID int64, amount float64) (*PaymentResult, error) {
	settleLock := lock.NewSettleLock(s.redisClient, billID, uuid.NewString())
	if err := settleLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer settleLock.Unlock(ctx)

	var (
		bill        *model.Bill
		participant *model.BillParticipant
		newStatus   string
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		bill, participant, newStatus, err = s.settleParticipant(ctx, tx, billID, userID, amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifyPayment(ctx, bill, amount, newStatus, userID)

	bill, err = s.billRepo.GetByID(ctx, billID)
	if err != nil {
		return nil, err
	}
	return &PaymentResult{Bill: bill, Participant: participant}, nil
}

// settleParticipant 结算核心，必须在事务与账单锁内调用
// 返回记账后的账单、参与人与（可能变化的）新状态
func (s *BillService) settleParticipant(ctx context.Context, tx *gorm.DB, billID, userID int64, amount float64) (*model.Bill, *model.BillParticipant, string, error) {
	bill, err := s.billRepo.GetByID(ctx, billID)
	if err != nil {
		return nil, nil, "", err
	}
	if bill.Status == model.BillStatusCancelled || bill.Status == model.BillStatusPaid {
		return nil, nil, "", repository.ErrBillStatusInvalid
	}

	participant, err := s.billRepo.GetParticipant(ctx, tx, billID, userID)
	if err != nil {
		return nil, nil, "", err
	}
	if err := participant.ApplyPayment(amount, time.Now()); err != nil {
		return nil, nil, "", err
	}
	if err := s.billRepo.SaveParticipantPayment(ctx, tx, participant); err != nil {
		return nil, nil, "", fmt.Errorf("记账失败: %w", err)
	}

	participants, err := s.billRepo.GetParticipants(ctx, tx, billID)
	if err != nil {
		return nil, nil, "", err
	}
	newStatus := model.DeriveBillStatus(bill.Status, participants)
	if newStatus != bill.Status {
		if err := s.billRepo.UpdateStatus(ctx, tx, billID, bill.Status, newStatus); err != nil {
			return nil, nil, "", err
		}
	}
	return bill, participant, newStatus, nil
}

// notifyPayment 还款后的事件派发，失败不影响已提交的结算
// amount 为本次还款金额，不是参与人累计已付
func (s *BillService) notifyPayment(ctx context.Context, bill *model.Bill, amount float64, newStatus string, payerID int64) {
	// 创建者收还款通知（在线直推 bill_updated，离线落库）
	err := s.dispatcher.Dispatch(ctx, nil, &event.Event{
		Kind:       event.KindBill,
		Key:        bill.BillNo,
		Recipients: []int64{bill.CreatorID},
		Title:      "账单还款",
		Message:    fmt.Sprintf("%s 收到一笔还款 %.2f %s", bill.Title, amount, bill.Currency),
		NotifyType: model.NotificationTypeBillPayment,
		Metadata: map[string]interface{}{
			"bill_id":  bill.ID,
			"bill_no":  bill.BillNo,
			"payer_id": payerID,
		},
		LiveEvent: "bill_updated",
		LivePayload: map[string]interface{}{
			"bill_id":    bill.ID,
			"status":     newStatus,
			"updated_by": payerID,
		},
	})
	if err != nil {
		log.Printf("还款事件派发失败: billNo=%s, err=%v", bill.BillNo, err)
	}

	// 其余参与人只收尽力而为的状态信号
	others := make([]int64, 0, len(bill.Participants))
	for _, p := range bill.Participants {
		if p.UserID != payerID {
			others = append(others, p.UserID)
		}
	}
	if len(others) == 0 {
		return
	}
	err = s.dispatcher.Dispatch(ctx, nil, &event.Event{
		Recipients: others,
		LiveEvent:  "bill_updated",
		LivePayload: map[string]interface{}{
			"bill_id":    bill.ID,
			"status":     newStatus,
			"updated_by": payerID,
		},
		LiveOnly: true,
	})
	if err != nil {
		log.Printf("账单状态信号派发失败: billNo=%s, err=%v", bill.BillNo, err)
	}
}

// UpdateStatus 创建者手工变更账单状态（取消、补标逾期等）
func (s *BillService) UpdateStatus(ctx context.Context, billID, userID int64, toStatus string) (*model.Bill, error) {
	bill, err := s.billRepo.GetByID(ctx, billID)
	if err != nil {
		return nil, err
	}
	if bill.CreatorID != userID {
		return nil, ErrNotBillCreator
	}
	if err := s.billRepo.UpdateStatus(ctx, nil, billID, bill.Status, toStatus); err != nil {
		return nil, err
	}

	participantIDs := make([]int64, 0, len(bill.Participants))
	for _, p := range bill.Participants {
		participantIDs = append(participantIDs, p.UserID)
	}
	if len(participantIDs) > 0 {
		_ = s.dispatcher.Dispatch(ctx, nil, &event.Event{
			Recipients: participantIDs,
			LiveEvent:  "bill_updated",
			LivePayload: map[string]interface{}{
				"bill_id":    bill.ID,
				"status":     toStatus,
				"updated_by": userID,
			},
			LiveOnly: true,
		})
	}
	return s.billRepo.GetByID(ctx, billID)
}

// DeleteBill 删除账单，仅创建者，且任何参与人都未还款时才允许
func (s *BillService) DeleteBill(ctx context.Context, billID, userID int64) error {
	bill, err := s.billRepo.GetByID(ctx, billID)
	if err != nil {
		return err
	}
	if bill.CreatorID != userID {
		return ErrNotBillCreator
	}
	for _, p := range bill.Participants {
		if p.PaidAmount > 0 {
			return ErrBillNotDeletable
		}
	}
	return s.billRepo.Delete(ctx, billID)
}

type BillSummary struct {
	TotalOwedToYou   float64 `json:"total_owed_to_you"` // 别人欠你的未还部分
	TotalYouOwe      float64 `json:"total_you_owe"`     // 你欠别人的未还部分
	CreatedCount     int     `json:"created_count"`     // 你创建的未结清账单数
	ParticipantCount int     `json:"participant_count"` // 你参与的未结清账单数
}

// GetSummary 个人账单汇总，只统计未结清部分
func (s *BillService) GetSummary(ctx context.Context, userID int64) (*BillSummary, error) {
	summary := &BillSummary{}

	created, err := s.billRepo.ListCreatedWithParticipants(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, bill := range created {
		if bill.Status == model.BillStatusCancelled || bill.Status == model.BillStatusPaid {
			continue
		}
		summary.CreatedCount++
		for _, p := range bill.Participants {
			if remaining := p.Amount - p.PaidAmount; remaining > 0 {
				summary.TotalOwedToYou += remaining
			}
		}
	}

	participations, err := s.billRepo.ListParticipationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, p := range participations {
		if p.IsPaid {
			continue
		}
		summary.ParticipantCount++
		if remaining := p.Amount - p.PaidAmount; remaining > 0 {
			summary.TotalYouOwe += remaining
		}
	}
	return summary, nil
}
