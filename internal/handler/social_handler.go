package handler

import (
	"strconv"

	"github.com/akin525/bills-ledger/internal/service"
	"github.com/akin525/bills-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// 好友接口
// ============================================================

type sendFriendRequestBody struct {
	ReceiverID int64 `json:"receiver_id" binding:"required"`
}

// SendFriendRequest 发起好友请求
// POST /api/v1/friends/requests
func (h *Handler) SendFriendRequest(c *gin.Context) {
	var req sendFriendRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	fr, err := h.friendService.SendRequest(c.Request.Context(), currentUserID(c), req.ReceiverID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, fr)
}

// AcceptFriendRequest 接受好友请求
// POST /api/v1/friends/requests/:id/accept
func (h *Handler) AcceptFriendRequest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.friendService.AcceptRequest(c.Request.Context(), id, currentUserID(c)); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, nil)
}

// RejectFriendRequest 拒绝好友请求
// POST /api/v1/friends/requests/:id/reject
func (h *Handler) RejectFriendRequest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.friendService.RejectRequest(c.Request.Context(), id, currentUserID(c)); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, nil)
}

// ListFriendRequests 待处理的好友请求
// GET /api/v1/friends/requests
func (h *Handler) ListFriendRequests(c *gin.Context) {
	requests, err := h.friendService.ListPendingRequests(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, requests)
}

// ListFriends 好友列表
// GET /api/v1/friends
func (h *Handler) ListFriends(c *gin.Context) {
	friends, err := h.friendService.ListFriends(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, friends)
}

// RemoveFriend 解除好友
// DELETE /api/v1/friends/:id
func (h *Handler) RemoveFriend(c *gin.Context) {
	friendID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.friendService.RemoveFriend(c.Request.Context(), currentUserID(c), friendID); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, nil)
}

// ============================================================
// 通知接口
// ============================================================

// ListNotifications 通知列表
// GET /api/v1/notifications?is_read=false&page=1&page_size=20
func (h *Handler) ListNotifications(c *gin.Context) {
	var isRead *bool
	if v := c.Query("is_read"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			response.ParamError(c, "is_read 参数错误")
			return
		}
		isRead = &parsed
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	notifications, total, err := h.notificationService.List(c.Request.Context(), currentUserID(c), isRead, page, pageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"list":  notifications,
		"total": total,
		"page":  page,
	})
}

// GetUnreadCount 未读通知数
// GET /api/v1/notifications/unread-count
func (h *Handler) GetUnreadCount(c *gin.Context) {
	count, err := h.notificationService.UnreadCount(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{"count": count})
}

// MarkNotificationRead 标记单条已读
// POST /api/v1/notifications/:id/read
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.notificationService.MarkRead(c.Request.Context(), id, currentUserID(c)); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, nil)
}

// MarkAllNotificationsRead 全部标记已读
// POST /api/v1/notifications/read-all
func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	if err := h.notificationService.MarkAllRead(c.Request.Context(), currentUserID(c)); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, nil)
}

// DeleteNotification 删除通知
// DELETE /api/v1/notifications/:id
func (h *Handler) DeleteNotification(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.notificationService.Delete(c.Request.Context(), id, currentUserID(c)); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, nil)
}

// ============================================================
// 组织接口
// ============================================================

// CreateOrganization 创建组织
// POST /api/v1/organizations
func (h *Handler) CreateOrganization(c *gin.Context) {
	var req service.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	org, err := h.organizationService.Create(c.Request.Context(), currentUserID(c), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, org)
}

// GetOrganization 组织详情
// GET /api/v1/organizations/:id
func (h *Handler) GetOrganization(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	org, err := h.organizationService.Get(c.Request.Context(), id, currentUserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, org)
}

// ListOrganizations 我的组织列表
// GET /api/v1/organizations
func (h *Handler) ListOrganizations(c *gin.Context) {
	orgs, err := h.organizationService.ListByUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, orgs)
}

// UpdateOrganization 修改组织资料
// PUT /api/v1/organizations/:id
func (h *Handler) UpdateOrganization(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	org, err := h.organizationService.Update(c.Request.Context(), id, currentUserID(c), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, org)
}

// DeleteOrganization 解散组织
// DELETE /api/v1/organizations/:id
func (h *Handler) DeleteOrganization(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.organizationService.Delete(c.Request.Context(), id, currentUserID(c)); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, nil)
}

type orgMemberRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Role   string `json:"role"`
}

// AddOrganizationMember 拉人入组织
// POST /api/v1/organizations/:id/members
func (h *Handler) AddOrganizationMember(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req orgMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if err := h.organizationService.AddMember(c.Request.Context(), id, currentUserID(c), req.UserID, req.Role); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, nil)
}

// RemoveOrganizationMember 移除成员 / 退出组织
// DELETE /api/v1/organizations/:id/members/:user_id
func (h *Handler) RemoveOrganizationMember(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	targetID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	if err := h.organizationService.RemoveMember(c.Request.Context(), id, currentUserID(c), targetID); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, nil)
}

type updateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// UpdateOrganizationMemberRole 调整成员角色
// PUT /api/v1/organizations/:id/members/:user_id/role
func (h *Handler) UpdateOrganizationMemberRole(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	targetID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if err := h.organizationService.UpdateMemberRole(c.Request.Context(), id, currentUserID(c), targetID, req.Role); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, nil)
}
