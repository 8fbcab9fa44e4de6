package job

import (
	"context"
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

type fakeOutboxStore struct {
	created []*model.OutboxMessage
}

func (f *fakeOutboxStore) Create(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error {
	f.created = append(f.created, msg)
	return nil
}

// 逾期通知的接收人：创建人 + 所有未支付参与人，已支付参与人不打扰
func TestNotifyOverdueRecipients(t *testing.T) {
	notifs := &fakeNotifStore{}
	outbox := &fakeOutboxStore{}
	dispatcher := event.NewDispatcher(nil, notifs, outbox, config.KafkaTopicConfig{
		BillEvent: "bill-event",
	})

	j := &BillOverdueJob{dispatcher: dispatcher}

	bill := &model.Bill{
		ID:        1,
		BillNo:    "B20260828001",
		Title:     "周末聚餐",
		CreatorID: 100,
		Status:    model.BillStatusPartiallyPaid,
		Participants: []model.BillParticipant{
			{UserID: 200, Amount: 50, PaidAmount: 50, IsPaid: true},
			{UserID: 300, Amount: 50},
		},
	}

	j.notifyOverdue(context.Background(), bill)

	want := map[int64]bool{100: true, 300: true}
	if len(notifs.created) != len(want) {
		t.Fatalf("通知条数 = %d, want %d", len(notifs.created), len(want))
	}
	for _, n := range notifs.created {
		if !want[n.UserID] {
			t.Errorf("不应通知用户 %d", n.UserID)
		}
		delete(want, n.UserID)
		if n.Type != model.NotificationTypeBillOverdue {
			t.Errorf("通知类型 = %s, want %s", n.Type, model.NotificationTypeBillOverdue)
		}
	}
	for userID := range want {
		t.Errorf("用户 %d 未收到逾期通知", userID)
	}

	if len(outbox.created) != 1 {
		t.Fatalf("发件箱条数 = %d, want 1", len(outbox.created))
	}
	if outbox.created[0].Topic != "bill-event" {
		t.Errorf("发件箱 topic = %s, want bill-event", outbox.created[0].Topic)
	}
}
