package handler

import (
	"strconv"

	"github.com/akin525/bills-ledger/internal/service"
	"github.com/akin525/bills-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// 账单接口
// ============================================================

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, name+" 参数错误")
		return 0, false
	}
	return id, true
}

// CreateBill 创建账单
// POST /api/v1/bills
func (h *Handler) CreateBill(c *gin.Context) {
	var req service.CreateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	bill, err := h.billService.CreateBill(c.Request.Context(), currentUserID(c), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, bill)
}

// GetBill 账单详情
// GET /api/v1/bills/:id
func (h *Handler) GetBill(c *gin.Context) {
	billID, ok := pathID(c, "id")
	if !ok {
		return
	}
	bill, err := h.billService.GetBill(c.Request.Context(), billID, currentUserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, bill)
}

// ListBills 我的账单列表（创建的 + 参与的）
// GET /api/v1/bills?status=PENDING
func (h *Handler) ListBills(c *gin.Context) {
	bills, err := h.billService.ListBills(c.Request.Context(), currentUserID(c), c.Query("status"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, bills)
}

type markPaidRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// MarkBillPaid 参与人上报还款
// POST /api/v1/bills/:id/pay
func (h *Handler) MarkBillPaid(c *gin.Context) {
	billID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req markPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	result, err := h.billService.MarkAsPaid(c.Request.Context(), billID, currentUserID(c), req.Amount)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, result)
}

type updateBillStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateBillStatus 创建者变更账单状态
// PUT /api/v1/bills/:id/status
func (h *Handler) UpdateBillStatus(c *gin.Context) {
	billID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateBillStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	bill, err := h.billService.UpdateStatus(c.Request.Context(), billID, currentUserID(c), req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, bill)
}

// DeleteBill 删除账单
// DELETE /api/v1/bills/:id
func (h *Handler) DeleteBill(c *gin.Context) {
	billID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.billService.DeleteBill(c.Request.Context(), billID, currentUserID(c)); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, nil)
}

// GetBillSummary 个人账单汇总
// GET /api/v1/bills/summary
func (h *Handler) GetBillSummary(c *gin.Context) {
	summary, err := h.billService.GetSummary(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, summary)
}
