package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rongwang/staff-scheduler/internal/models"
)

func (h *Handler) RequestLeave(c *gin.Context) {
	var req models.CreateLeaveRequest
	if !h.bind(c, &req) {
		return
	}

	resp, err := h.svc.RequestLeave(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListLeaveRequests lists every user's requests, optionally filtered by ?status=
func (h *Handler) ListLeaveRequests(c *gin.Context) {
	requests, err := h.svc.ListLeaveRequests(c.Request.Context(), currentUserID(c), models.LeaveStatus(c.Query("status")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (h *Handler) ListMyLeave(c *gin.Context) {
	year, valid := h.queryInt(c, "year", 0)
	if !valid {
		return
	}

	requests, err := h.svc.ListMyLeave(c.Request.Context(), currentUserID(c), year)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (h *Handler) ApproveLeave(c *gin.Context) {
	var req models.ReviewLeaveRequest
	// notes are optional on approval, so an empty body is fine
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.badRequest(c, "Invalid request: "+err.Error())
		return
	}

	lr, err := h.svc.ApproveLeave(c.Request.Context(), currentUserID(c), c.Param("id"), req.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lr)
}

func (h *Handler) RejectLeave(c *gin.Context) {
	var req models.ReviewLeaveRequest
	if !h.bind(c, &req) {
		return
	}

	lr, err := h.svc.RejectLeave(c.Request.Context(), currentUserID(c), c.Param("id"), req.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lr)
}

func (h *Handler) WithdrawLeave(c *gin.Context) {
	if err := h.svc.WithdrawLeave(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "Leave request withdrawn")
}

func (h *Handler) RevokeLeave(c *gin.Context) {
	if err := h.svc.RevokeLeave(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "Leave revoked and balance restored")
}

func (h *Handler) PendingLeaveCount(c *gin.Context) {
	count, err := h.svc.PendingLeaveCount(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.CountResponse{Status: "success", Count: count})
}

func (h *Handler) LeaveBalance(c *gin.Context) {
	year, valid := h.queryInt(c, "year", 0)
	if !valid {
		return
	}

	balances, err := h.svc.LeaveBalance(c.Request.Context(), currentUserID(c), c.Query("userId"), year)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, balances)
}

func (h *Handler) ListAllocations(c *gin.Context) {
	year, valid := h.queryInt(c, "year", 0)
	if !valid {
		return
	}

	allocs, err := h.svc.ListAllocations(c.Request.Context(), currentUserID(c), year)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, allocs)
}

func (h *Handler) SetAllocation(c *gin.Context) {
	var req models.SetAllocationRequest
	if !h.bind(c, &req) {
		return
	}

	alloc, err := h.svc.SetAllocation(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alloc)
}

func (h *Handler) ListLeaveTypes(c *gin.Context) {
	types, err := h.svc.ListLeaveTypes(c.Request.Context(), currentUserID(c), queryBool(c, "includeInactive"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types)
}

func (h *Handler) CreateLeaveType(c *gin.Context) {
	var req models.LeaveTypeRequest
	if !h.bind(c, &req) {
		return
	}

	lt, err := h.svc.CreateLeaveType(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lt)
}

func (h *Handler) UpdateLeaveType(c *gin.Context) {
	var req models.LeaveTypeRequest
	if !h.bind(c, &req) {
		return
	}

	lt, err := h.svc.UpdateLeaveType(c.Request.Context(), currentUserID(c), c.Param("id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lt)
}

func (h *Handler) DeactivateLeaveType(c *gin.Context) {
	if err := h.svc.DeactivateLeaveType(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "Leave type deactivated")
}
