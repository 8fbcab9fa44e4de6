package handler

import (
	"strconv"

	"github.com/akin525/bills-ledger/internal/service"
	"github.com/akin525/bills-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// 转账接口
// ============================================================

// CreateTransaction 创建转账（bill_id 非空时为账单还款）
// POST /api/v1/transactions
func (h *Handler) CreateTransaction(c *gin.Context) {
	var req service.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	txn, err := h.transactionService.CreateTransaction(c.Request.Context(), currentUserID(c), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, txn)
}

// GetTransaction 转账详情
// GET /api/v1/transactions/:id
func (h *Handler) GetTransaction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	txn, err := h.transactionService.GetTransaction(c.Request.Context(), id, currentUserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, txn)
}

// ListTransactions 转账流水（分页）
// GET /api/v1/transactions?type=&status=&page=1&page_size=20
func (h *Handler) ListTransactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	txns, total, err := h.transactionService.ListTransactions(
		c.Request.Context(), currentUserID(c), c.Query("type"), c.Query("status"), page, pageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"list":  txns,
		"total": total,
		"page":  page,
	})
}

// CancelTransaction 取消待处理的转账
// POST /api/v1/transactions/:id/cancel
func (h *Handler) CancelTransaction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.transactionService.CancelTransaction(c.Request.Context(), id, currentUserID(c)); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, nil)
}

// GetTransactionStats 个人转账统计
// GET /api/v1/transactions/stats
func (h *Handler) GetTransactionStats(c *gin.Context) {
	stats, err := h.transactionService.GetStats(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, stats)
}
