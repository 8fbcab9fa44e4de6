package handler

import (
	"strconv"

	"github.com/akin525/bills-ledger/internal/service"
	"github.com/akin525/bills-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// 会话与消息接口
// ============================================================

type directConversationRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// GetOrCreateDirectConversation 获取或创建单聊
// POST /api/v1/conversations/direct
func (h *Handler) GetOrCreateDirectConversation(c *gin.Context) {
	var req directConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	conv, err := h.conversationService.GetOrCreateDirect(c.Request.Context(), currentUserID(c), req.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, conv)
}

type createGroupRequest struct {
	Name    string  `json:"name" binding:"required,max=128"`
	Members []int64 `json:"members"`
}

// CreateGroupConversation 创建群聊
// POST /api/v1/conversations/group
func (h *Handler) CreateGroupConversation(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	conv, err := h.conversationService.CreateGroup(c.Request.Context(), currentUserID(c), req.Name, req.Members)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, conv)
}

// ListConversations 我的会话列表（带未读数）
// GET /api/v1/conversations
func (h *Handler) ListConversations(c *gin.Context) {
	convs, err := h.conversationService.ListConversations(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, convs)
}

// ListMessages 历史消息
// GET /api/v1/conversations/:id/messages?page=1&page_size=50
func (h *Handler) ListMessages(c *gin.Context) {
	convID, ok := pathID(c, "id")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))

	messages, total, err := h.conversationService.GetMessages(c.Request.Context(), convID, currentUserID(c), page, pageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"list":  messages,
		"total": total,
		"page":  page,
	})
}

// SendMessage REST 发消息
// POST /api/v1/conversations/:id/messages
func (h *Handler) SendMessage(c *gin.Context) {
	convID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	msg, err := h.conversationService.SendMessage(c.Request.Context(), convID, currentUserID(c), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, msg)
}

type addParticipantRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// AddConversationParticipant 拉人入群
// POST /api/v1/conversations/:id/participants
func (h *Handler) AddConversationParticipant(c *gin.Context) {
	convID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req addParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if err := h.conversationService.AddParticipant(c.Request.Context(), convID, currentUserID(c), req.UserID); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, nil)
}

// LeaveConversation 退出群聊
// DELETE /api/v1/conversations/:id/participants/me
func (h *Handler) LeaveConversation(c *gin.Context) {
	convID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.conversationService.Leave(c.Request.Context(), convID, currentUserID(c)); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, nil)
}

// MarkConversationRead 标记会话已读
// POST /api/v1/conversations/:id/read
func (h *Handler) MarkConversationRead(c *gin.Context) {
	convID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.conversationService.MarkRead(c.Request.Context(), convID, currentUserID(c)); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, nil)
}
