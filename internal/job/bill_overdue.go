package job

import (
	"context"
	"log"
	"time"

	"github.com/akin525/bills-ledger/internal/config"
	"github.com/akin525/bills-ledger/internal/event"
	"github.com/akin525/bills-ledger/internal/model"
	"github.com/akin525/bills-ledger/internal/repository"

	"gorm.io/gorm"
)

// BillOverdueJob 账单逾期扫描任务
// 周期扫描到期未结清的账单（PENDING / PARTIALLY_PAID 且 due_date 已过），
// 通过 guarded update 标记为 OVERDUE，并向双方派发逾期事件
type BillOverdueJob struct {
	db         *gorm.DB
	billRepo   *repository.BillRepository
	dispatcher *event.Dispatcher
	cfg        *config.Config
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewBillOverdueJob(db *gorm.DB, cfg *config.Config, dispatcher *event.Dispatcher) *BillOverdueJob {
	interval := time.Duration(cfg.Business.OverdueCheckSeconds) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &BillOverdueJob{
		db:         db,
		billRepo:   repository.NewBillRepository(db),
		dispatcher: dispatcher,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		interval:   interval,
		batchSize:  100,
	}
}

func (j *BillOverdueJob) Start(ctx context.Context) {
	log.Println("[BillOverdueJob] 账单逾期扫描任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[BillOverdueJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[BillOverdueJob] 任务停止")
			return
		case <-ticker.C:
			j.markOverdueBills(ctx)
		}
	}
}

func (j *BillOverdueJob) Stop() {
	close(j.stopCh)
}

func (j *BillOverdueJob) markOverdueBills(ctx context.Context) {
	bills, err := j.billRepo.GetDueBills(ctx, time.Now(), j.batchSize)
	if err != nil {
		log.Printf("[BillOverdueJob] 查询到期账单失败: %v", err)
		return
	}

	if len(bills) == 0 {
		return
	}

	log.Printf("[BillOverdueJob] 发现 %d 个到期未结清账单", len(bills))

	markedCount := 0
	for _, bill := range bills {
		// 条件更新：扫描到更新之间账单被结清或取消时这里会空转，直接跳过
		err := j.billRepo.UpdateStatus(ctx, nil, bill.ID, bill.Status, model.BillStatusOverdue)
		if err != nil {
			log.Printf("[BillOverdueJob] 标记逾期失败: billNo=%s, err=%v", bill.BillNo, err)
			continue
		}
		markedCount++
		log.Printf("[BillOverdueJob] 账单已标记逾期: billNo=%s, creator=%d, total=%.2f",
			bill.BillNo, bill.CreatorID, bill.TotalAmount)

		j.notifyOverdue(ctx, bill)
	}

	if markedCount > 0 {
		log.Printf("[BillOverdueJob] 本次标记 %d 个逾期账单", markedCount)
	}
}

func (j *BillOverdueJob) notifyOverdue(ctx context.Context, bill *model.Bill) {
	recipients := make([]int64, 0, len(bill.Participants)+1)
	recipients = append(recipients, bill.CreatorID)
	for _, p := range bill.Participants {
		if !p.IsPaid {
			recipients = append(recipients, p.UserID)
		}
	}

	err := j.dispatcher.Dispatch(ctx, nil, &event.Event{
		Kind:       event.KindBill,
		Key:        bill.BillNo,
		Recipients: recipients,
		Title:      "账单已逾期",
		Message:    bill.Title + " 已超过还款期限",
		NotifyType: model.NotificationTypeBillOverdue,
		Metadata: map[string]interface{}{
			"bill_id": bill.ID,
			"bill_no": bill.BillNo,
		},
		LiveEvent: "bill_updated",
		LivePayload: map[string]interface{}{
			"bill_id": bill.ID,
			"status":  model.BillStatusOverdue,
		},
		AlwaysPersist: true,
	})
	if err != nil {
		log.Printf("[BillOverdueJob] 逾期事件派发失败: billNo=%s, err=%v", bill.BillNo, err)
	}
}
