package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/akin525/bills-ledger/internal/event"
	"github.com/akin525/bills-ledger/internal/model"
	"github.com/akin525/bills-ledger/internal/repository"

	"gorm.io/gorm"
)

var (
	ErrSelfConversation  = errors.New("不能和自己创建会话")
	ErrDirectImmutable   = errors.New("单聊会话不能增删成员")
	ErrGroupNameRequired = errors.New("群会话必须有名称")
)

type ConversationService struct {
	db         *gorm.DB
	dispatcher *event.Dispatcher

	convRepo *repository.ConversationRepository
	userRepo *repository.UserRepository
}

func NewConversationService(db *gorm.DB, dispatcher *event.Dispatcher) *ConversationService {
	return &ConversationService{
		db:         db,
		dispatcher: dispatcher,
		convRepo:   repository.NewConversationRepository(db),
		userRepo:   repository.NewUserRepository(db),
	}
}

// GetOrCreateDirect 获取或创建两人单聊
// direct_key 唯一索引兜底：并发创建同一对用户时只会成功一个，失败方重读
func (s *ConversationService) GetOrCreateDirect(ctx context.Context, userID, otherID int64) (*model.Conversation, error) {
	if userID == otherID {
		return nil, ErrSelfConversation
	}
	if _, err := s.userRepo.GetByID(ctx, otherID); err != nil {
		return nil, err
	}

	key := model.DirectConversationKey(userID, otherID)
	conv, err := s.convRepo.GetDirectByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}

	conv = &model.Conversation{
		Type:      model.ConversationTypeDirect,
		DirectKey: &key,
	}
	if err := s.convRepo.CreateWithParticipants(ctx, nil, conv, []int64{userID, otherID}); err != nil {
		existing, getErr := s.convRepo.GetDirectByKey(ctx, key)
		if getErr == nil && existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("创建会话失败: %w", err)
	}
	return s.convRepo.GetByID(ctx, conv.ID)
}

// CreateGroup 创建群会话，创建者自动入会
func (s *ConversationService) CreateGroup(ctx context.Context, creatorID int64, name string, memberIDs []int64) (*model.Conversation, error) {
	if name == "" {
		return nil, ErrGroupNameRequired
	}
	seen := map[int64]struct{}{creatorID: {}}
	members := []int64{creatorID}
	for _, id := range memberIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		if _, err := s.userRepo.GetByID(ctx, id); err != nil {
			return nil, fmt.Errorf("成员 %d 不存在: %w", id, err)
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}

	conv := &model.Conversation{
		Type: model.ConversationTypeGroup,
		Name: name,
	}
	if err := s.convRepo.CreateWithParticipants(ctx, nil, conv, members); err != nil {
		return nil, fmt.Errorf("创建会话失败: %w", err)
	}
	return s.convRepo.GetByID(ctx, conv.ID)
}

type ConversationView struct {
	*model.Conversation
	UnreadCount int64 `json:"unread_count"`
}

// ListConversations 用户的会话列表，附带各会话未读数
func (s *ConversationService) ListConversations(ctx context.Context, userID int64) ([]*ConversationView, error) {
	convs, err := s.convRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]*ConversationView, 0, len(convs))
	for _, conv := range convs {
		view := &ConversationView{Conversation: conv}
		var since *time.Time
		for _, p := range conv.Participants {
			if p.UserID == userID {
				since = p.LastReadAt
				break
			}
		}
		count, err := s.convRepo.CountUnread(ctx, conv.ID, userID, since)
		if err == nil {
			view.UnreadCount = count
		}
		views = append(views, view)
	}
	return views, nil
}

// GetMessages 拉取历史消息（倒序分页），同时推进已读游标
func (s *ConversationService) GetMessages(ctx context.Context, conversationID, userID int64, page, pageSize int) ([]*model.Message, int64, error) {
	participant, err := s.convRepo.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, 0, err
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}
	messages, total, err := s.convRepo.ListMessages(ctx, conversationID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	_ = s.convRepo.UpdateLastRead(ctx, participant.ID, time.Now())
	return messages, total, nil
}

type SendMessageRequest struct {
	Content     string   `json:"content" binding:"required"`
	Type        string   `json:"type"`
	Attachments []string `json:"attachments"`
}

// SendMessage REST 路径发消息
// 与 WebSocket 路径落同一张表；实时投递走按人直推，离线成员落通知
func (s *ConversationService) SendMessage(ctx context.Context, conversationID, senderID int64, req *SendMessageRequest) (*model.Message, error) {
	if _, err := s.convRepo.GetParticipant(ctx, conversationID, senderID); err != nil {
		return nil, err
	}

	msgType := req.Type
	if !model.ValidMessageType(msgType) {
		msgType = model.MessageTypeText
	}
	var attachments string
	if len(req.Attachments) > 0 {
		raw, err := json.Marshal(req.Attachments)
		if err != nil {
			return nil, errors.New("附件格式错误")
		}
		attachments = string(raw)
	}

	msg := &model.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        req.Content,
		Type:           msgType,
		Attachments:    attachments,
	}
	if err := s.convRepo.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("发送消息失败: %w", err)
	}

	full, err := s.convRepo.GetMessageWithSender(ctx, msg.ID)
	if err != nil {
		full = msg
	}

	memberIDs, err := s.convRepo.ListParticipantIDs(ctx, conversationID)
	if err == nil {
		recipients := make([]int64, 0, len(memberIDs))
		for _, id := range memberIDs {
			if id != senderID {
				recipients = append(recipients, id)
			}
		}
		if len(recipients) > 0 {
			sender := ""
			if full.Sender != nil {
				sender = full.Sender.FullName
			}
			_ = s.dispatcher.Dispatch(ctx, nil, &event.Event{
				Kind:       event.KindMessage,
				Key:        fmt.Sprintf("conversation-%d", conversationID),
				Recipients: recipients,
				Title:      "新消息",
				Message:    sender + ": " + req.Content,
				NotifyType: model.NotificationTypeMessage,
				Metadata: map[string]interface{}{
					"conversation_id": conversationID,
					"message_id":      msg.ID,
					"sender_id":       senderID,
				},
				LiveEvent:   "new_message",
				LivePayload: full,
			})
		}
	}
	return full, nil
}

// AddParticipant 拉人入群，仅群会话、仅现有成员可操作
func (s *ConversationService) AddParticipant(ctx context.Context, conversationID, operatorID, newUserID int64) error {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.Type != model.ConversationTypeGroup {
		return ErrDirectImmutable
	}
	if _, err := s.convRepo.GetParticipant(ctx, conversationID, operatorID); err != nil {
		return err
	}
	if _, err := s.userRepo.GetByID(ctx, newUserID); err != nil {
		return err
	}
	return s.convRepo.AddParticipant(ctx, conversationID, newUserID)
}

// Leave 退出群会话，单聊不允许退出
func (s *ConversationService) Leave(ctx context.Context, conversationID, userID int64) error {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.Type != model.ConversationTypeGroup {
		return ErrDirectImmutable
	}
	if _, err := s.convRepo.GetParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	return s.convRepo.RemoveParticipant(ctx, conversationID, userID)
}

// MarkRead 把已读游标推到现在
func (s *ConversationService) MarkRead(ctx context.Context, conversationID, userID int64) error {
	participant, err := s.convRepo.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	return s.convRepo.UpdateLastRead(ctx, participant.ID, time.Now())
}
