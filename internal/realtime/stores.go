package realtime

import (
	"context"

	"github.com/akin525/bills-ledger/internal/model"
)

// 路由层只依赖窄接口，由 repository 层实现，便于单测替换

type ConversationStore interface {
	GetParticipant(ctx context.Context, conversationID, userID int64) (*model.ConversationParticipant, error)
	ListParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error)
	CreateMessage(ctx context.Context, msg *model.Message) error
	GetMessageWithSender(ctx context.Context, messageID int64) (*model.Message, error)
}

type FriendStore interface {
	ListFriendIDs(ctx context.Context, userID int64) ([]int64, error)
}

type BillStore interface {
	GetByID(ctx context.Context, billID int64) (*model.Bill, error)
}

type TransactionStore interface {
	GetByID(ctx context.Context, id int64) (*model.Transaction, error)
}
