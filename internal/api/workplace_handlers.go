package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rongwang/staff-scheduler/internal/models"
)

// Users, roles and audit

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.svc.ListUsers(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req models.CreateUserRequest
	if !h.bind(c, &req) {
		return
	}

	user, err := h.svc.CreateUser(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) UpdateUser(c *gin.Context) {
	var req models.UpdateUserRequest
	if !h.bind(c, &req) {
		return
	}

	user, err := h.svc.UpdateUser(c.Request.Context(), currentUserID(c), c.Param("id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) SetUserRoles(c *gin.Context) {
	var req models.SetUserRolesRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.svc.SetUserRoles(c.Request.Context(), currentUserID(c), c.Param("id"), req); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "Roles updated")
}

func (h *Handler) ListRoles(c *gin.Context) {
	roles, err := h.svc.ListRoles(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, roles)
}

func (h *Handler) ListAuditLogs(c *gin.Context) {
	limit, valid := h.queryInt(c, "limit", 0)
	if !valid {
		return
	}
	offset, valid := h.queryInt(c, "offset", 0)
	if !valid {
		return
	}

	logs, err := h.svc.ListAuditLogs(c.Request.Context(), currentUserID(c), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// Tasks

func (h *Handler) ListTasks(c *gin.Context) {
	tasks, err := h.svc.ListTasks(c.Request.Context(), currentUserID(c), queryBool(c, "all"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *Handler) CreateTask(c *gin.Context) {
	var req models.CreateTaskRequest
	if !h.bind(c, &req) {
		return
	}

	task, err := h.svc.CreateTask(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *Handler) GetTask(c *gin.Context) {
	task, err := h.svc.GetTask(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *Handler) UpdateTaskStatus(c *gin.Context) {
	var req models.UpdateTaskStatusRequest
	if !h.bind(c, &req) {
		return
	}

	task, err := h.svc.UpdateTaskStatus(c.Request.Context(), currentUserID(c), c.Param("id"), req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *Handler) DeleteTask(c *gin.Context) {
	if err := h.svc.DeleteTask(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "Task deleted")
}

// Board

func (h *Handler) ListPosts(c *gin.Context) {
	posts, err := h.svc.ListPosts(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (h *Handler) UpcomingEvents(c *gin.Context) {
	posts, err := h.svc.UpcomingEvents(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (h *Handler) CreatePost(c *gin.Context) {
	var req models.CreatePostRequest
	if !h.bind(c, &req) {
		return
	}

	post, err := h.svc.CreatePost(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *Handler) TogglePin(c *gin.Context) {
	post, err := h.svc.TogglePin(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *Handler) DeletePost(c *gin.Context) {
	if err := h.svc.DeletePost(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "Post deleted")
}

// Notifications

func (h *Handler) ListNotifications(c *gin.Context) {
	limit, valid := h.queryInt(c, "limit", 0)
	if !valid {
		return
	}

	notes, err := h.svc.ListNotifications(c.Request.Context(), currentUserID(c), queryBool(c, "unread"), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}

func (h *Handler) UnreadNotificationCount(c *gin.Context) {
	count, err := h.svc.UnreadNotificationCount(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.CountResponse{Status: "success", Count: count})
}

func (h *Handler) PopupNotifications(c *gin.Context) {
	notes, err := h.svc.PopupNotifications(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	if err := h.svc.MarkNotificationRead(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "")
}

func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	if err := h.svc.MarkAllNotificationsRead(c.Request.Context(), currentUserID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "")
}

// Expenses

func (h *Handler) ListExpenseCategories(c *gin.Context) {
	categories, err := h.svc.ListExpenseCategories(c.Request.Context(), currentUserID(c), queryBool(c, "all"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *Handler) CreateExpenseCategory(c *gin.Context) {
	var req models.CreateExpenseCategoryRequest
	if !h.bind(c, &req) {
		return
	}

	category, err := h.svc.CreateExpenseCategory(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (h *Handler) ToggleExpenseCategory(c *gin.Context) {
	category, err := h.svc.ToggleExpenseCategory(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *Handler) SetCategoryBudget(c *gin.Context) {
	var req models.SetBudgetRequest
	if !h.bind(c, &req) {
		return
	}

	category, err := h.svc.SetCategoryBudget(c.Request.Context(), currentUserID(c), c.Param("id"), req.BudgetCents)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *Handler) BudgetReport(c *gin.Context) {
	year, valid := h.queryInt(c, "year", 0)
	if !valid {
		return
	}
	month, valid := h.queryInt(c, "month", 0)
	if !valid {
		return
	}

	report, err := h.svc.BudgetReport(c.Request.Context(), currentUserID(c), year, month)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) ListExpenses(c *gin.Context) {
	expenses, err := h.svc.ListExpenses(c.Request.Context(), currentUserID(c), queryBool(c, "all"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, expenses)
}

func (h *Handler) SubmitExpense(c *gin.Context) {
	var req models.SubmitExpenseRequest
	if !h.bind(c, &req) {
		return
	}

	expense, err := h.svc.SubmitExpense(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, expense)
}

func (h *Handler) ApproveExpense(c *gin.Context) {
	expense, err := h.svc.ApproveExpense(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, expense)
}

func (h *Handler) RejectExpense(c *gin.Context) {
	var req models.RejectExpenseRequest
	if !h.bind(c, &req) {
		return
	}

	expense, err := h.svc.RejectExpense(c.Request.Context(), currentUserID(c), c.Param("id"), req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, expense)
}

func (h *Handler) ReimburseExpense(c *gin.Context) {
	expense, err := h.svc.ReimburseExpense(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, expense)
}
