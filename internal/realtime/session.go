package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/akin525/bills-ledger/internal/event"
	"github.com/akin525/bills-ledger/internal/model"
	"github.com/akin525/bills-ledger/internal/repository"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 64

	// 离线通知正文截断长度（按字符数）
	notifyPreviewRunes = 50
)

// Session 一条已认证的 WebSocket 连接
type Session struct {
	id       string
	userID   int64
	username string

	srv  *Server
	hub  *Hub
	conn *websocket.Conn
	send chan Frame

	closeOnce sync.Once
	done      chan struct{}
}

func newSession(id string, userID int64, username string, srv *Server, conn *websocket.Conn) *Session {
	return &Session{
		id:       id,
		userID:   userID,
		username: username,
		srv:      srv,
		hub:      srv.hub,
		conn:     conn,
		send:     make(chan Frame, sendBufferSize),
		done:     make(chan struct{}),
	}
}

// Enqueue 将出站帧放入发送队列，队列满或会话已关闭时丢弃并返回 false
// 慢消费者不能阻塞广播方
func (s *Session) Enqueue(frame Frame) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// Close 关闭会话，幂等
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			_ = s.conn.Close()
		}
	})
}

func (s *Session) sendError(msg string) {
	s.Enqueue(Frame{Event: EventError, Data: ErrorData{Message: msg}})
}

// readPump 读循环，连接断开后完成注销与下线广播
func (s *Session) readPump() {
	defer func() {
		if s.hub.Unregister(s) {
			s.srv.broadcastPresence(context.Background(), s.userID, StatusOffline)
		}
		s.Close()
		log.Printf("[WS] 连接断开: user=%d conn=%s", s.userID, s.id)
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] 读取异常: user=%d err=%v", s.userID, err)
			}
			return
		}

		var frame InboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			s.sendError("无法解析的消息格式")
			continue
		}
		// 单个事件处理失败只通知当前连接，不影响连接存活
		if err := s.handleEvent(frame); err != nil {
			log.Printf("[WS] 事件处理失败: user=%d event=%s err=%v", s.userID, frame.Event, err)
			s.sendError(err.Error())
		}
	}
}

// writePump 写循环，串行化所有出站写并维持心跳
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// ============================================================
// 事件路由
// ============================================================

func (s *Session) handleEvent(frame InboundFrame) error {
	ctx := context.Background()

	switch frame.Event {
	case EventJoinConversation:
		var data JoinConversationData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return errors.New("参数格式错误")
		}
		return s.handleJoinConversation(ctx, data)
	case EventLeaveConversation:
		var data JoinConversationData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return errors.New("参数格式错误")
		}
		s.hub.LeaveRoom(data.ConversationID, s)
		return nil
	case EventSendMessage:
		var data SendMessageData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return errors.New("参数格式错误")
		}
		return s.handleSendMessage(ctx, data)
	case EventTyping:
		var data TypingData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return errors.New("参数格式错误")
		}
		s.handleTyping(data)
		return nil
	case EventBillUpdate:
		var data BillUpdateData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return errors.New("参数格式错误")
		}
		return s.handleBillUpdate(ctx, data)
	case EventTransactionCreated:
		var data TransactionCreatedData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return errors.New("参数格式错误")
		}
		return s.handleTransactionCreated(ctx, data)
	case EventFriendRequestSent:
		var data FriendRequestSentData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return errors.New("参数格式错误")
		}
		s.hub.Push(data.ReceiverID, EventFriendRequestReceived, FriendRequestReceivedData{SenderID: s.userID})
		return nil
	default:
		return errors.New("未知事件: " + frame.Event)
	}
}

// handleJoinConversation 加入房间前校验成员身份，非成员拿到 error 帧且不入房
func (s *Session) handleJoinConversation(ctx context.Context, data JoinConversationData) error {
	if _, err := s.srv.conversations.GetParticipant(ctx, data.ConversationID, s.userID); err != nil {
		if errors.Is(err, repository.ErrNotConvParticipant) {
			return errors.New("不是该会话的成员，无法加入")
		}
		return err
	}
	s.hub.JoinRoom(data.ConversationID, s)
	return nil
}

// handleSendMessage 落库消息、房间内广播、为不在线的成员落通知
func (s *Session) handleSendMessage(ctx context.Context, data SendMessageData) error {
	if data.Content == "" {
		return errors.New("消息内容不能为空")
	}
	if _, err := s.srv.conversations.GetParticipant(ctx, data.ConversationID, s.userID); err != nil {
		if errors.Is(err, repository.ErrNotConvParticipant) {
			return errors.New("不是该会话的成员，无法发送消息")
		}
		return err
	}

	msgType := data.Type
	if !model.ValidMessageType(msgType) {
		msgType = model.MessageTypeText
	}
	var attachments string
	if len(data.Attachments) > 0 {
		raw, err := json.Marshal(data.Attachments)
		if err != nil {
			return errors.New("附件格式错误")
		}
		attachments = string(raw)
	}

	msg := &model.Message{
		ConversationID: data.ConversationID,
		SenderID:       s.userID,
		Content:        data.Content,
		Type:           msgType,
		Attachments:    attachments,
	}
	if err := s.srv.conversations.CreateMessage(ctx, msg); err != nil {
		return errors.New("消息发送失败")
	}

	full, err := s.srv.conversations.GetMessageWithSender(ctx, msg.ID)
	if err != nil {
		full = msg
	}
	s.hub.SendToRoom(data.ConversationID, EventNewMessage, full, nil)

	// 离线成员走通知回退，房间广播已覆盖在线成员
	memberIDs, err := s.srv.conversations.ListParticipantIDs(ctx, data.ConversationID)
	if err != nil {
		log.Printf("[WS] 查询会话成员失败: conversation=%d err=%v", data.ConversationID, err)
		return nil
	}
	recipients := make([]int64, 0, len(memberIDs))
	for _, id := range memberIDs {
		if id != s.userID {
			recipients = append(recipients, id)
		}
	}
	if len(recipients) == 0 {
		return nil
	}

	_ = s.srv.dispatcher.Dispatch(ctx, nil, &event.Event{
		Kind:       event.KindMessage,
		Key:        "conversation-" + strconv.FormatInt(data.ConversationID, 10),
		Recipients: recipients,
		Title:      "新消息",
		Message:    s.username + ": " + truncateRunes(data.Content, notifyPreviewRunes),
		NotifyType: model.NotificationTypeMessage,
		Metadata: map[string]interface{}{
			"conversation_id": data.ConversationID,
			"message_id":      msg.ID,
			"sender_id":       s.userID,
		},
		SkipLive: true,
	})
	return nil
}

// handleTyping 输入状态只在房间内即时转发，不落库，发送者自己不回显
func (s *Session) handleTyping(data TypingData) {
	s.hub.SendToRoom(data.ConversationID, EventUserTyping, UserTypingData{
		UserID:         s.userID,
		ConversationID: data.ConversationID,
		IsTyping:       data.IsTyping,
	}, s)
}

// handleBillUpdate 向账单全部参与人直推状态变更信号，离线不补发
func (s *Session) handleBillUpdate(ctx context.Context, data BillUpdateData) error {
	bill, err := s.srv.bills.GetByID(ctx, data.BillID)
	if err != nil {
		if errors.Is(err, repository.ErrBillNotFound) {
			return errors.New("账单不存在")
		}
		return err
	}

	recipients := make([]int64, 0, len(bill.Participants)+1)
	for _, p := range bill.Participants {
		if p.UserID != s.userID {
			recipients = append(recipients, p.UserID)
		}
	}
	if bill.CreatorID != s.userID {
		recipients = append(recipients, bill.CreatorID)
	}
	if len(recipients) == 0 {
		return nil
	}

	status := data.Status
	if status == "" {
		status = bill.Status
	}
	return s.srv.dispatcher.Dispatch(ctx, nil, &event.Event{
		Recipients: recipients,
		LiveEvent:  EventBillUpdated,
		LivePayload: BillUpdatedData{
			BillID:    bill.ID,
			Status:    status,
			UpdatedBy: s.userID,
		},
		LiveOnly: true,
	})
}

// handleTransactionCreated 向转账收款人直推到账信号，离线不补发
func (s *Session) handleTransactionCreated(ctx context.Context, data TransactionCreatedData) error {
	txn, err := s.srv.transactions.GetByID(ctx, data.TransactionID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return errors.New("交易不存在")
		}
		return err
	}
	if txn.SenderID != s.userID {
		return errors.New("只能推送自己发起的交易")
	}
	return s.srv.dispatcher.Dispatch(ctx, nil, &event.Event{
		Recipients:  []int64{txn.ReceiverID},
		LiveEvent:   EventTransactionReceived,
		LivePayload: txn,
		LiveOnly:    true,
	})
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
