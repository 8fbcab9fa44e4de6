package repository

import (
	"context"
	"errors"

	"github.com/akin525/bills-ledger/internal/model"

	"gorm.io/gorm"
)

var (
	ErrRequestNotFound  = errors.New("好友请求不存在")
	ErrRequestProcessed = errors.New("好友请求已被处理")
	ErrAlreadyFriends   = errors.New("已经是好友关系")
	ErrRequestExists    = errors.New("好友请求已存在")
)

type FriendRepository struct {
	db *gorm.DB
}

func NewFriendRepository(db *gorm.DB) *FriendRepository {
	return &FriendRepository{db: db}
}

func (r *FriendRepository) CreateRequest(ctx context.Context, req *model.FriendRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *FriendRepository) GetRequestByID(ctx context.Context, id int64) (*model.FriendRequest, error) {
	var req model.FriendRequest
	err := r.db.WithContext(ctx).Preload("Sender").First(&req, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

// HasPendingRequestBetween 检查两用户间是否已有待处理请求（任一方向）
func (r *FriendRepository) HasPendingRequestBetween(ctx context.Context, userA, userB int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.FriendRequest{}).
		Where("status = ?", model.FriendRequestStatusPending).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userA, userB, userB, userA).
		Count(&count).Error
	return count > 0, err
}

// UpdateRequestStatus 带前置状态校验的请求流转
// 只允许 PENDING -> ACCEPTED/REJECTED；重复处理时 RowsAffected 为 0
func (r *FriendRepository) UpdateRequestStatus(ctx context.Context, tx *gorm.DB, requestID int64, toStatus string) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.FriendRequest{}).
		Where("id = ? AND status = ?", requestID, model.FriendRequestStatusPending).
		Update("status", toStatus)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRequestProcessed
	}
	return nil
}

func (r *FriendRepository) ListPendingForUser(ctx context.Context, userID int64) ([]*model.FriendRequest, error) {
	var requests []*model.FriendRequest
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("receiver_id = ? AND status = ?", userID, model.FriendRequestStatusPending).
		Order("created_at DESC").
		Find(&requests).Error
	return requests, err
}

// ============================================================
// 好友关系
// ============================================================

// AreFriends 双向任一行存在即视为好友
func (r *FriendRepository) AreFriends(ctx context.Context, userA, userB int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Friend{}).
		Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
			userA, userB, userB, userA).
		Count(&count).Error
	return count > 0, err
}

// CreatePair 成对写入双向好友关系
// 两行必须在调用方的事务内一并写入，绝不允许只落一半
func (r *FriendRepository) CreatePair(ctx context.Context, tx *gorm.DB, userA, userB int64) error {
	if tx == nil {
		tx = r.db
	}
	rows := []model.Friend{
		{UserID: userA, FriendID: userB},
		{UserID: userB, FriendID: userA},
	}
	return tx.WithContext(ctx).Create(&rows).Error
}

// DeletePair 删除双向好友关系
func (r *FriendRepository) DeletePair(ctx context.Context, userA, userB int64) error {
	return r.db.WithContext(ctx).
		Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
			userA, userB, userB, userA).
		Delete(&model.Friend{}).Error
}

func (r *FriendRepository) ListFriends(ctx context.Context, userID int64) ([]*model.Friend, error) {
	var friends []*model.Friend
	err := r.db.WithContext(ctx).
		Preload("FriendUser").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&friends).Error
	return friends, err
}

// ListFriendIDs 查询好友ID列表（在线状态广播用）
func (r *FriendRepository) ListFriendIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&model.Friend{}).
		Where("user_id = ?", userID).
		Pluck("friend_id", &ids).Error
	return ids, err
}
