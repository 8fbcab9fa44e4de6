package event

import (
	"context"
	"testing"

	"github.com/akin525/bills-ledger/internal/config"
	"github.com/akin525/bills-ledger/internal/model"

	"gorm.io/gorm"
)

type fakePresence struct {
	online map[int64]bool
	pushed []pushRecord
}

type pushRecord struct {
	userID int64
	event  string
}

func (f *fakePresence) IsOnline(userID int64) bool { return f.online[userID] }

func (f *fakePresence) Push(userID int64, event string, payload interface{}) bool {
	if !f.online[userID] {
		return false
	}
	f.pushed = append(f.pushed, pushRecord{userID, event})
	return true
}

type fakeNotificationStore struct {
	created []*model.Notification
}

func (f *fakeNotificationStore) Create(ctx context.Context, tx *gorm.DB, n *model.Notification) error {
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

func topicCfg() config.KafkaTopicConfig {
	return config.KafkaTopicConfig{
		BillEvent:        "t.bill",
		TransactionEvent: "t.txn",
		SocialEvent:      "t.social",
	}
}

func TestDispatchOnlineGetsLiveOfflineGetsNotification(t *testing.T) {
	presence := &fakePresence{online: map[int64]bool{1: true}}
	notifications := &fakeNotificationStore{}
	outbox := &fakeOutboxStore{}
	d := NewDispatcher(presence, notifications, outbox, topicCfg())

	ev := &Event{
		Kind:       KindTransaction,
		Key:        "TXN-1",
		Recipients: []int64{1, 2},
		Title:      "收到转账",
		Message:    "你收到一笔转账",
		NotifyType: model.NotificationTypeTransaction,
		Metadata:   map[string]interface{}{"transaction_id": 9},
		LiveEvent:  "transaction_received",
	}
	if err := d.Dispatch(context.Background(), nil, ev); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(presence.pushed) != 1 || presence.pushed[0].userID != 1 {
		t.Errorf("在线用户应收到直推: %+v", presence.pushed)
	}
	if len(notifications.created) != 1 || notifications.created[0].UserID != 2 {
		t.Errorf("离线用户应落库一条通知: %+v", notifications.created)
	}
	if notifications.created[0].Metadata == "" {
		t.Error("通知应携带深链 metadata")
	}
	if len(outbox.created) != 1 || outbox.created[0].Topic != "t.txn" {
		t.Errorf("应写入一条发件箱: %+v", outbox.created)
	}
}

func TestDispatchLiveOnlySkipsPersistence(t *testing.T) {
	presence := &fakePresence{online: map[int64]bool{1: true}}
	notifications := &fakeNotificationStore{}
	d := NewDispatcher(presence, notifications, nil, topicCfg())

	ev := &Event{
		Recipients:  []int64{1, 2},
		LiveEvent:   "bill_updated",
		LivePayload: map[string]interface{}{"bill_id": 7},
		LiveOnly:    true,
	}
	if err := d.Dispatch(context.Background(), nil, ev); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(presence.pushed) != 1 {
		t.Errorf("仅在线用户收到直推: %+v", presence.pushed)
	}
	if len(notifications.created) != 0 {
		t.Errorf("LiveOnly 事件不应落库: %+v", notifications.created)
	}
}

func TestDispatchSkipLivePersistsOnlyOffline(t *testing.T) {
	// 房间广播已完成实时投递的场景：在线成员不再重复投递，离线成员落库
	presence := &fakePresence{online: map[int64]bool{1: true}}
	notifications := &fakeNotificationStore{}
	d := NewDispatcher(presence, notifications, nil, topicCfg())

	ev := &Event{
		Recipients: []int64{1, 2},
		Title:      "新消息",
		Message:    "alice: 你好",
		NotifyType: model.NotificationTypeMessage,
		LiveEvent:  "new_message",
		SkipLive:   true,
	}
	if err := d.Dispatch(context.Background(), nil, ev); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(presence.pushed) != 0 {
		t.Errorf("SkipLive 不应产生直推: %+v", presence.pushed)
	}
	if len(notifications.created) != 1 || notifications.created[0].UserID != 2 {
		t.Errorf("只有离线成员落库: %+v", notifications.created)
	}
}

func TestDispatchAlwaysPersist(t *testing.T) {
	presence := &fakePresence{online: map[int64]bool{1: true, 2: true}}
	notifications := &fakeNotificationStore{}
	d := NewDispatcher(presence, notifications, nil, topicCfg())

	ev := &Event{
		Recipients:    []int64{1, 2},
		Title:         "新账单",
		Message:       "你被加入了一个账单",
		NotifyType:    model.NotificationTypeBillCreated,
		AlwaysPersist: true,
	}
	if err := d.Dispatch(context.Background(), nil, ev); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(notifications.created) != 2 {
		t.Errorf("AlwaysPersist 应为所有接收人落库: %+v", notifications.created)
	}
}
