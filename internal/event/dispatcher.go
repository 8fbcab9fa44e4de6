package event

import (
	"context"
	"encoding/json"
	"log"

	"github.com/akin525/bills-ledger/internal/config"
	"github.com/akin525/bills-ledger/internal/model"

	"gorm.io/gorm"
)

// Presence 在线表的只读视图
// 由 realtime.Hub 实现；派发器只关心"能否送达"，不关心连接细节
type Presence interface {
	IsOnline(userID int64) bool
	Push(userID int64, event string, payload interface{}) bool
}

// NotificationStore 通知落库
type NotificationStore interface {
	Create(ctx context.Context, tx *gorm.DB, n *model.Notification) error
}

// OutboxStore 发件箱落库
type OutboxStore interface {
	Create(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error
}

// Dispatcher 事件派发器
//
// 统一的投递决策（通知回退策略）：
//  1. 接收人在线 -> 实时帧直推，不落库（消息本体除外，消息由生产方落库）
//  2. 接收人离线 -> 落库为通知，metadata 携带可跳转到源实体的标识
//  3. 事件种类有对应 topic -> 追加发件箱行，由后台任务投递 Kafka
//
// 直推失败只记日志，绝不让事件派发拖垮业务主流程
type Dispatcher struct {
	presence      Presence
	notifications NotificationStore
	outbox        OutboxStore
	topics        map[string]string
}

func NewDispatcher(presence Presence, notifications NotificationStore, outbox OutboxStore, topicCfg config.KafkaTopicConfig) *Dispatcher {
	return &Dispatcher{
		presence:      presence,
		notifications: notifications,
		outbox:        outbox,
		topics: map[string]string{
			KindBill:        topicCfg.BillEvent,
			KindTransaction: topicCfg.TransactionEvent,
			KindSocial:      topicCfg.SocialEvent,
			KindMessage:     topicCfg.SocialEvent,
		},
	}
}

// Dispatch 派发一个领域事件
//
// tx 非空时通知与发件箱行写入调用方事务，随业务数据一并提交或回滚；
// tx 为空时各自独立落库（用于已提交后的尽力而为派发）
func (d *Dispatcher) Dispatch(ctx context.Context, tx *gorm.DB, ev *Event) error {
	metadata := ""
	if len(ev.Metadata) > 0 {
		raw, err := json.Marshal(ev.Metadata)
		if err != nil {
			log.Printf("[Dispatcher] 序列化 metadata 失败: %v", err)
		} else {
			metadata = string(raw)
		}
	}

	for _, userID := range ev.Recipients {
		delivered := false

		if !ev.SkipLive && ev.LiveEvent != "" && d.presence != nil {
			delivered = d.presence.Push(userID, ev.LiveEvent, ev.LivePayload)
		}
		if ev.SkipLive && d.presence != nil {
			// 实时投递已由调用方完成（房间广播），在线即视为已送达
			delivered = d.presence.IsOnline(userID)
		}

		if ev.LiveOnly {
			continue
		}
		if delivered && !ev.AlwaysPersist {
			continue
		}

		n := &model.Notification{
			UserID:   userID,
			Title:    ev.Title,
			Message:  ev.Message,
			Type:     ev.NotifyType,
			Metadata: metadata,
		}
		if err := d.notifications.Create(ctx, tx, n); err != nil {
			if tx != nil {
				// 事务内落库失败必须让整个事务回滚
				return err
			}
			log.Printf("[Dispatcher] 通知落库失败: userID=%d, type=%s, err=%v", userID, ev.NotifyType, err)
		}
	}

	return d.appendOutbox(ctx, tx, ev)
}

func (d *Dispatcher) appendOutbox(ctx context.Context, tx *gorm.DB, ev *Event) error {
	if d.outbox == nil || ev.Kind == "" {
		return nil
	}
	topic, ok := d.topics[ev.Kind]
	if !ok || topic == "" {
		return nil
	}

	payload := map[string]interface{}{
		"kind":       ev.Kind,
		"recipients": ev.Recipients,
		"type":       ev.NotifyType,
		"message":    ev.Message,
		"metadata":   ev.Metadata,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[Dispatcher] 序列化事件失败: kind=%s, err=%v", ev.Kind, err)
		return nil
	}

	msg := &model.OutboxMessage{
		MessageKey: ev.Key,
		Topic:      topic,
		Payload:    string(raw),
		Status:     model.OutboxStatusPending,
	}
	if err := d.outbox.Create(ctx, tx, msg); err != nil {
		if tx != nil {
			return err
		}
		log.Printf("[Dispatcher] 发件箱落库失败: kind=%s, key=%s, err=%v", ev.Kind, ev.Key, err)
	}
	return nil
}
