package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/akin525/bills-ledger/internal/event"
	"github.com/akin525/bills-ledger/internal/model"
	"github.com/akin525/bills-ledger/internal/repository"

	"gorm.io/gorm"
)

var (
	ErrSelfFriendRequest  = errors.New("不能添加自己为好友")
	ErrNotRequestReceiver = errors.New("只有请求接收人可以处理该请求")
)

type FriendService struct {
	db         *gorm.DB
	dispatcher *event.Dispatcher

	friendRepo *repository.FriendRepository
	userRepo   *repository.UserRepository
}

func NewFriendService(db *gorm.DB, dispatcher *event.Dispatcher) *FriendService {
	return &FriendService{
		db:         db,
		dispatcher: dispatcher,
		friendRepo: repository.NewFriendRepository(db),
		userRepo:   repository.NewUserRepository(db),
	}
}

// SendRequest 发起好友请求
// 已是好友或双方间已有待处理请求（任一方向）时拒绝
func (s *FriendService) SendRequest(ctx context.Context, senderID, receiverID int64) (*model.FriendRequest, error) {
	if senderID == receiverID {
		return nil, ErrSelfFriendRequest
	}
	if _, err := s.userRepo.GetByID(ctx, receiverID); err != nil {
		return nil, err
	}

	areFriends, err := s.friendRepo.AreFriends(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if areFriends {
		return nil, repository.ErrAlreadyFriends
	}

	hasPending, err := s.friendRepo.HasPendingRequestBetween(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if hasPending {
		return nil, repository.ErrRequestExists
	}

	req := &model.FriendRequest{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     model.FriendRequestStatusPending,
	}
	if err := s.friendRepo.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("创建好友请求失败: %w", err)
	}

	sender, _ := s.userRepo.GetByID(ctx, senderID)
	senderName := ""
	if sender != nil {
		senderName = sender.FullName
	}
	_ = s.dispatcher.Dispatch(ctx, nil, &event.Event{
		Kind:       event.KindSocial,
		Key:        fmt.Sprintf("friend-request-%d", req.ID),
		Recipients: []int64{receiverID},
		Title:      "好友请求",
		Message:    senderName + " 请求添加你为好友",
		NotifyType: model.NotificationTypeFriendRequest,
		Metadata: map[string]interface{}{
			"request_id": req.ID,
			"sender_id":  senderID,
		},
		LiveEvent:   "friend_request_received",
		LivePayload: map[string]interface{}{"request_id": req.ID, "sender_id": senderID},
	})
	return req, nil
}

// AcceptRequest 接受好友请求
// 请求状态流转与好友对写入在同一事务，guarded update 保证同一请求只被处理一次
func (s *FriendService) AcceptRequest(ctx context.Context, requestID, userID int64) error {
	req, err := s.friendRepo.GetRequestByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.ReceiverID != userID {
		return ErrNotRequestReceiver
	}
	if req.Status != model.FriendRequestStatusPending {
		return repository.ErrRequestProcessed
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.friendRepo.UpdateRequestStatus(ctx, tx, requestID, model.FriendRequestStatusAccepted); err != nil {
			return err
		}
		return s.friendRepo.CreatePair(ctx, tx, req.SenderID, req.ReceiverID)
	})
	if err != nil {
		return err
	}

	accepter, _ := s.userRepo.GetByID(ctx, userID)
	accepterName := ""
	if accepter != nil {
		accepterName = accepter.FullName
	}
	_ = s.dispatcher.Dispatch(ctx, nil, &event.Event{
		Kind:       event.KindSocial,
		Key:        fmt.Sprintf("friend-request-%d", requestID),
		Recipients: []int64{req.SenderID},
		Title:      "好友请求已通过",
		Message:    accepterName + " 通过了你的好友请求",
		NotifyType: model.NotificationTypeFriendAccepted,
		Metadata: map[string]interface{}{
			"request_id": requestID,
			"user_id":    userID,
		},
		LiveEvent:   "friend_request_accepted",
		LivePayload: map[string]interface{}{"request_id": requestID, "user_id": userID},
	})
	return nil
}

// RejectRequest 拒绝好友请求，不通知发起方
func (s *FriendService) RejectRequest(ctx context.Context, requestID, userID int64) error {
	req, err := s.friendRepo.GetRequestByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.ReceiverID != userID {
		return ErrNotRequestReceiver
	}
	if req.Status != model.FriendRequestStatusPending {
		return repository.ErrRequestProcessed
	}
	return s.friendRepo.UpdateRequestStatus(ctx, nil, requestID, model.FriendRequestStatusRejected)
}

func (s *FriendService) ListPendingRequests(ctx context.Context, userID int64) ([]*model.FriendRequest, error) {
	return s.friendRepo.ListPendingForUser(ctx, userID)
}

func (s *FriendService) ListFriends(ctx context.Context, userID int64) ([]*model.Friend, error) {
	return s.friendRepo.ListFriends(ctx, userID)
}

// RemoveFriend 解除好友关系，双向删除
func (s *FriendService) RemoveFriend(ctx context.Context, userID, friendID int64) error {
	areFriends, err := s.friendRepo.AreFriends(ctx, userID, friendID)
	if err != nil {
		return err
	}
	if !areFriends {
		return repository.ErrRequestNotFound
	}
	return s.friendRepo.DeletePair(ctx, userID, friendID)
}
