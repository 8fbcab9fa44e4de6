package repository

import (
	"context"
	"errors"
	"time"

	"github.com/akin525/bills-ledger/internal/model"

	"gorm.io/gorm"
)

var (
	ErrConversationNotFound = errors.New("会话不存在")
	ErrNotConvParticipant   = errors.New("不是该会话的参与人")
	ErrAlreadyParticipant   = errors.New("用户已在会话中")
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// CreateWithParticipants 创建会话并写入全部参与人
// 会话与参与人必须同事务落库，避免出现无参与人的半截会话
func (r *ConversationRepository) CreateWithParticipants(ctx context.Context, tx *gorm.DB, conv *model.Conversation, userIDs []int64) error {
	run := func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Create(conv).Error; err != nil {
			return err
		}
		for _, uid := range userIDs {
			p := model.ConversationParticipant{
				ConversationID: conv.ID,
				UserID:         uid,
			}
			if err := tx.WithContext(ctx).Create(&p).Error; err != nil {
				return err
			}
		}
		return nil
	}
	if tx != nil {
		return run(tx)
	}
	return r.db.Transaction(run)
}

// GetDirectByKey 按无序用户对键查找 DIRECT 会话（建前先查不变量）
func (r *ConversationRepository) GetDirectByKey(ctx context.Context, key string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Preload("Participants.User").
		Where("type = ? AND direct_key = ?", model.ConversationTypeDirect, key).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id int64) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Preload("Participants.User").
		First(&conv, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

func (r *ConversationRepository) ListByUser(ctx context.Context, userID int64) ([]*model.Conversation, error) {
	var convs []*model.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Preload("Participants.User").
		Where("id IN (?)",
			r.db.Model(&model.ConversationParticipant{}).Select("conversation_id").Where("user_id = ?", userID),
		).
		Order("last_message_at DESC").
		Find(&convs).Error
	return convs, err
}

// GetParticipant 会话成员校验，入会话房间前必查
func (r *ConversationRepository) GetParticipant(ctx context.Context, conversationID, userID int64) (*model.ConversationParticipant, error) {
	var p model.ConversationParticipant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotConvParticipant
		}
		return nil, err
	}
	return &p, nil
}

// ListParticipantIDs 会话全部参与人的用户ID
func (r *ConversationRepository) ListParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&model.ConversationParticipant{}).
		Where("conversation_id = ?", conversationID).
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *ConversationRepository) AddParticipant(ctx context.Context, conversationID, userID int64) error {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrAlreadyParticipant
	}
	p := model.ConversationParticipant{ConversationID: conversationID, UserID: userID}
	return r.db.WithContext(ctx).Create(&p).Error
}

func (r *ConversationRepository) RemoveParticipant(ctx context.Context, conversationID, userID int64) error {
	return r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Delete(&model.ConversationParticipant{}).Error
}

func (r *ConversationRepository) UpdateLastRead(ctx context.Context, participantID int64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.ConversationParticipant{}).
		Where("id = ?", participantID).
		Update("last_read_at", at).Error
}

// ============================================================
// 消息
// ============================================================

// CreateMessage 写入消息并刷新会话的 last_message / last_message_at
// 两次写入在同一事务内完成
func (r *ConversationRepository) CreateMessage(ctx context.Context, msg *model.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		now := time.Now()
		return tx.Model(&model.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Updates(map[string]interface{}{
				"last_message":    msg.Content,
				"last_message_at": &now,
			}).Error
	})
}

func (r *ConversationRepository) GetMessageWithSender(ctx context.Context, messageID int64) (*model.Message, error) {
	var msg model.Message
	err := r.db.WithContext(ctx).Preload("Sender").First(&msg, messageID).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID int64, page, pageSize int) ([]*model.Message, int64, error) {
	var messages []*model.Message
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Message{}).Where("conversation_id = ?", conversationID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Preload("Sender").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&messages).Error
	return messages, total, err
}

// CountUnread 统计某参与人在会话中未读的他人消息
func (r *ConversationRepository) CountUnread(ctx context.Context, conversationID, userID int64, since *time.Time) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("conversation_id = ? AND sender_id <> ?", conversationID, userID)
	if since != nil {
		query = query.Where("created_at > ?", *since)
	}
	var count int64
	err := query.Count(&count).Error
	return count, err
}
