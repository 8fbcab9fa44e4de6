package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/akin525/bills-ledger/internal/config"
	"github.com/akin525/bills-ledger/internal/event"
	"github.com/akin525/bills-ledger/internal/model"
	"github.com/akin525/bills-ledger/internal/repository"

	"gorm.io/gorm"
)

// ============================================================
// 测试替身
// ============================================================

type fakeConvStore struct {
	members  map[int64][]int64 // conversationID -> userIDs
	messages []*model.Message
	nextID   int64
}

func (f *fakeConvStore) GetParticipant(_ context.Context, conversationID, userID int64) (*model.ConversationParticipant, error) {
	for _, id := range f.members[conversationID] {
		if id == userID {
			return &model.ConversationParticipant{ConversationID: conversationID, UserID: userID}, nil
		}
	}
	return nil, repository.ErrNotConvParticipant
}

func (f *fakeConvStore) ListParticipantIDs(_ context.Context, conversationID int64) ([]int64, error) {
	return f.members[conversationID], nil
}

func (f *fakeConvStore) CreateMessage(_ context.Context, msg *model.Message) error {
	f.nextID++
	msg.ID = f.nextID
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeConvStore) GetMessageWithSender(_ context.Context, messageID int64) (*model.Message, error) {
	for _, m := range f.messages {
		if m.ID == messageID {
			full := *m
			full.Sender = &model.User{ID: m.SenderID}
			return &full, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeFriendStore struct {
	friends map[int64][]int64
}

func (f *fakeFriendStore) ListFriendIDs(_ context.Context, userID int64) ([]int64, error) {
	return f.friends[userID], nil
}

type fakeBillStore struct {
	bills map[int64]*model.Bill
}

func (f *fakeBillStore) GetByID(_ context.Context, billID int64) (*model.Bill, error) {
	b, ok := f.bills[billID]
	if !ok {
		return nil, repository.ErrBillNotFound
	}
	return b, nil
}

type fakeTxnStore struct {
	txns map[int64]*model.Transaction
}

func (f *fakeTxnStore) GetByID(_ context.Context, id int64) (*model.Transaction, error) {
	txn, ok := f.txns[id]
	if !ok {
		return nil, repository.ErrTransactionNotFound
	}
	return txn, nil
}

type fakeNotifStore struct {
	created []*model.Notification
}

func (f *fakeNotifStore) Create(_ context.Context, _ *gorm.DB, n *model.Notification) error {
	f.created = append(f.created, n)
	return nil
}

type fakeOutboxStore struct {
	created []*model.OutboxMessage
}

func (f *fakeOutboxStore) Create(_ context.Context, _ *gorm.DB, msg *model.OutboxMessage) error {
	f.created = append(f.created, msg)
	return nil
}

type routerFixture struct {
	hub    *Hub
	srv    *Server
	conv   *fakeConvStore
	bills  *fakeBillStore
	txns   *fakeTxnStore
	notifs *fakeNotifStore
}

func newRouterFixture() *routerFixture {
	hub := NewHub()
	conv := &fakeConvStore{members: make(map[int64][]int64)}
	bills := &fakeBillStore{bills: make(map[int64]*model.Bill)}
	txns := &fakeTxnStore{txns: make(map[int64]*model.Transaction)}
	notifs := &fakeNotifStore{}
	dispatcher := event.NewDispatcher(hub, notifs, &fakeOutboxStore{}, config.KafkaTopicConfig{
		BillEvent:        "bills-ledger.bill",
		TransactionEvent: "bills-ledger.transaction",
		SocialEvent:      "bills-ledger.social",
	})
	srv := NewServer(hub, dispatcher, conv, &fakeFriendStore{friends: make(map[int64][]int64)}, bills, txns, "test-secret")
	return &routerFixture{hub: hub, srv: srv, conv: conv, bills: bills, txns: txns, notifs: notifs}
}

func (fx *routerFixture) connect(userID int64) *Session {
	s := newSession("conn", userID, "user", fx.srv, nil)
	fx.hub.Register(s)
	return s
}

// ============================================================
// 房间准入
// ============================================================

func TestJoinConversationDeniedForNonParticipant(t *testing.T) {
	fx := newRouterFixture()
	fx.conv.members[10] = []int64{2, 3}
	s := fx.connect(1)

	raw, _ := json.Marshal(JoinConversationData{ConversationID: 10})
	err := s.handleEvent(InboundFrame{Event: EventJoinConversation, Data: raw})
	if err == nil {
		t.Fatal("非成员加入房间应返回错误")
	}

	// 未入房：房间广播不应到达
	fx.hub.SendToRoom(10, EventNewMessage, "x", nil)
	if _, ok := takeFrame(s); ok {
		t.Fatal("被拒绝的会话不应收到房间广播")
	}
}

func TestJoinConversationAllowedForParticipant(t *testing.T) {
	fx := newRouterFixture()
	fx.conv.members[10] = []int64{1, 2}
	s := fx.connect(1)

	raw, _ := json.Marshal(JoinConversationData{ConversationID: 10})
	if err := s.handleEvent(InboundFrame{Event: EventJoinConversation, Data: raw}); err != nil {
		t.Fatalf("成员加入房间失败: %v", err)
	}

	fx.hub.SendToRoom(10, EventNewMessage, "x", nil)
	if frame, ok := takeFrame(s); !ok || frame.Event != EventNewMessage {
		t.Fatalf("入房后应收到房间广播，实际 %+v", frame)
	}
}

// ============================================================
// 消息扇出：落库一次、房间在线成员收实时帧、离线成员收且仅收一条通知
// ============================================================

func TestSendMessageFanOut(t *testing.T) {
	fx := newRouterFixture()
	fx.conv.members[10] = []int64{1, 2, 3} // 1 发送，2 在线入房，3 离线

	sender := fx.connect(1)
	member := fx.connect(2)
	fx.hub.JoinRoom(10, sender)
	fx.hub.JoinRoom(10, member)

	raw, _ := json.Marshal(SendMessageData{ConversationID: 10, Content: "晚饭账单发你了"})
	if err := sender.handleEvent(InboundFrame{Event: EventSendMessage, Data: raw}); err != nil {
		t.Fatalf("发送消息失败: %v", err)
	}

	if len(fx.conv.messages) != 1 {
		t.Fatalf("应落库 1 条消息，实际 %d", len(fx.conv.messages))
	}

	frame, ok := takeFrame(member)
	if !ok || frame.Event != EventNewMessage {
		t.Fatalf("在线成员应收到 %s，实际 %+v", EventNewMessage, frame)
	}

	if len(fx.notifs.created) != 1 {
		t.Fatalf("应只为离线成员落 1 条通知，实际 %d", len(fx.notifs.created))
	}
	n := fx.notifs.created[0]
	if n.UserID != 3 {
		t.Fatalf("通知接收人 = %d，期望离线成员 3", n.UserID)
	}
	if n.Type != model.NotificationTypeMessage {
		t.Fatalf("通知类型 = %s，期望 %s", n.Type, model.NotificationTypeMessage)
	}
	if !strings.Contains(n.Metadata, "conversation_id") || !strings.Contains(n.Metadata, "message_id") {
		t.Fatalf("通知 metadata 缺少跳转标识: %s", n.Metadata)
	}
}

func TestSendMessageDeniedForNonParticipant(t *testing.T) {
	fx := newRouterFixture()
	fx.conv.members[10] = []int64{2, 3}
	s := fx.connect(1)

	raw, _ := json.Marshal(SendMessageData{ConversationID: 10, Content: "hi"})
	if err := s.handleEvent(InboundFrame{Event: EventSendMessage, Data: raw}); err == nil {
		t.Fatal("非成员发送消息应返回错误")
	}
	if len(fx.conv.messages) != 0 {
		t.Fatal("非成员的消息不应落库")
	}
}

// ============================================================
// 输入状态：房间内即时转发，发送者不回显，不落库
// ============================================================

func TestTypingExcludesSenderAndNeverPersists(t *testing.T) {
	fx := newRouterFixture()
	sender := fx.connect(1)
	member := fx.connect(2)
	fx.hub.JoinRoom(10, sender)
	fx.hub.JoinRoom(10, member)

	raw, _ := json.Marshal(TypingData{ConversationID: 10, IsTyping: true})
	if err := sender.handleEvent(InboundFrame{Event: EventTyping, Data: raw}); err != nil {
		t.Fatalf("typing 处理失败: %v", err)
	}

	if _, ok := takeFrame(sender); ok {
		t.Fatal("发送者不应收到自己的输入状态")
	}
	frame, ok := takeFrame(member)
	if !ok || frame.Event != EventUserTyping {
		t.Fatalf("房间成员应收到 %s，实际 %+v", EventUserTyping, frame)
	}
	typing, ok := frame.Data.(UserTypingData)
	if !ok || typing.UserID != 1 || !typing.IsTyping {
		t.Fatalf("输入状态载荷不符: %+v", frame.Data)
	}
	if len(fx.notifs.created) != 0 {
		t.Fatal("输入状态不应产生通知")
	}
}

// ============================================================
// 账单/交易实时信号：仅在线直推，离线不补发
// ============================================================

func TestBillUpdateLiveOnly(t *testing.T) {
	fx := newRouterFixture()
	fx.bills.bills[5] = &model.Bill{
		ID:        5,
		CreatorID: 1,
		Status:    model.BillStatusPartiallyPaid,
		Participants: []model.BillParticipant{
			{BillID: 5, UserID: 2},
			{BillID: 5, UserID: 3},
		},
	}
	updater := fx.connect(1)
	online := fx.connect(2) // 3 离线

	raw, _ := json.Marshal(BillUpdateData{BillID: 5, Status: model.BillStatusPartiallyPaid})
	if err := updater.handleEvent(InboundFrame{Event: EventBillUpdate, Data: raw}); err != nil {
		t.Fatalf("bill_update 处理失败: %v", err)
	}

	frame, ok := takeFrame(online)
	if !ok || frame.Event != EventBillUpdated {
		t.Fatalf("在线参与人应收到 %s，实际 %+v", EventBillUpdated, frame)
	}
	payload := frame.Data.(BillUpdatedData)
	if payload.BillID != 5 || payload.UpdatedBy != 1 {
		t.Fatalf("账单更新载荷不符: %+v", payload)
	}
	if len(fx.notifs.created) != 0 {
		t.Fatal("尽力而为信号不应为离线参与人落通知")
	}
}

func TestTransactionCreatedPushesReceiverOnly(t *testing.T) {
	fx := newRouterFixture()
	fx.txns.txns[9] = &model.Transaction{ID: 9, SenderID: 1, ReceiverID: 2}
	sender := fx.connect(1)
	receiver := fx.connect(2)

	raw, _ := json.Marshal(TransactionCreatedData{TransactionID: 9})
	if err := sender.handleEvent(InboundFrame{Event: EventTransactionCreated, Data: raw}); err != nil {
		t.Fatalf("transaction_created 处理失败: %v", err)
	}

	if frame, ok := takeFrame(receiver); !ok || frame.Event != EventTransactionReceived {
		t.Fatalf("收款人应收到 %s，实际 %+v", EventTransactionReceived, frame)
	}
	if _, ok := takeFrame(sender); ok {
		t.Fatal("付款人不应收到到账信号")
	}

	// 只有交易发起人能触发推送
	other := fx.connect(3)
	if err := other.handleEvent(InboundFrame{Event: EventTransactionCreated, Data: raw}); err == nil {
		t.Fatal("非发起人触发推送应返回错误")
	}
}

func TestFriendRequestSentRelay(t *testing.T) {
	fx := newRouterFixture()
	sender := fx.connect(1)
	receiver := fx.connect(2)

	raw, _ := json.Marshal(FriendRequestSentData{ReceiverID: 2})
	if err := sender.handleEvent(InboundFrame{Event: EventFriendRequestSent, Data: raw}); err != nil {
		t.Fatalf("friend_request_sent 处理失败: %v", err)
	}
	frame, ok := takeFrame(receiver)
	if !ok || frame.Event != EventFriendRequestReceived {
		t.Fatalf("接收人应收到 %s，实际 %+v", EventFriendRequestReceived, frame)
	}
	if frame.Data.(FriendRequestReceivedData).SenderID != 1 {
		t.Fatalf("好友请求载荷不符: %+v", frame.Data)
	}
}

func TestUnknownEventRejected(t *testing.T) {
	fx := newRouterFixture()
	s := fx.connect(1)
	if err := s.handleEvent(InboundFrame{Event: "no_such_event"}); err == nil {
		t.Fatal("未知事件应返回错误")
	}
}
