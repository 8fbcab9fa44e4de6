package service

import (
	"context"
	"strings"
	"testing"

	"github.com/akin525/bills-ledger/internal/config"
	"github.com/akin525/bills-ledger/internal/event"
	"github.com/akin525/bills-ledger/internal/model"

	"gorm.io/gorm"
)

type fakeNotifStore struct {
	created []*model.Notification
}

func (f *fakeNotifStore) Create(ctx context.Context, tx *gorm.DB, n *model.Notification) error {
	f.created = append(f.created, n)
	return nil
}

type fakeOutboxStore struct{}

func (fakeOutboxStore) Create(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error {
	return nil
}

// 还款通知报的是本次还款金额；第二笔部分还款时不能把累计已付当成本次金额
func TestNotifyPaymentReportsAppliedAmount(t *testing.T) {
	notifs := &fakeNotifStore{}
	dispatcher := event.NewDispatcher(nil, notifs, fakeOutboxStore{}, config.KafkaTopicConfig{})

	svc := &BillService{dispatcher: dispatcher}

	bill := &model.Bill{
		ID:        1,
		BillNo:    "B20260828001",
		Title:     "周末聚餐",
		CreatorID: 100,
		Currency:  "NGN",
		Status:    model.BillStatusPartiallyPaid,
		Participants: []model.BillParticipant{
			{UserID: 200, Amount: 100, PaidAmount: 70},
		},
	}

	// 参与人累计已付 70，本次只还了 30
	svc.notifyPayment(context.Background(), bill, 30, model.BillStatusPaid, 200)

	if len(notifs.created) != 1 {
		t.Fatalf("通知条数 = %d, want 1", len(notifs.created))
	}
	msg := notifs.created[0].Message
	if !strings.Contains(msg, "30.00") {
		t.Errorf("通知应包含本次还款金额 30.00: %s", msg)
	}
	if strings.Contains(msg, "70.00") {
		t.Errorf("通知不应报累计已付金额 70.00: %s", msg)
	}
	if notifs.created[0].UserID != bill.CreatorID {
		t.Errorf("还款通知接收人 = %d, want 创建者 %d", notifs.created[0].UserID, bill.CreatorID)
	}
}
