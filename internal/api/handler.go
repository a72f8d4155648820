package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rongwang/staff-scheduler/internal/models"
	"github.com/rongwang/staff-scheduler/internal/service"
	"github.com/rongwang/staff-scheduler/internal/utils"
)

// Handler exposes the service over HTTP
type Handler struct {
	svc    service.Service
	logger *utils.Logger
}

// NewHandler creates a new Handler
func NewHandler(svc service.Service, logger *utils.Logger) *Handler {
	if logger == nil {
		logger = utils.Discard()
	}
	return &Handler{svc: svc, logger: logger}
}

// SetupRoutes registers every route on the router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)

	auth := router.Group("/api/auth")
	{
		auth.POST("/signup", h.SignUp)
		auth.POST("/login", h.Login)
	}

	api := router.Group("/api")
	api.Use(AuthMiddleware())
	{
		api.GET("/me", h.Me)

		// Leave
		api.POST("/leave/requests", h.RequestLeave)
		api.GET("/leave/requests", h.ListLeaveRequests)
		api.POST("/leave/requests/:id/approve", h.ApproveLeave)
		api.POST("/leave/requests/:id/reject", h.RejectLeave)
		api.POST("/leave/requests/:id/revoke", h.RevokeLeave)
		api.DELETE("/leave/requests/:id", h.WithdrawLeave)
		api.GET("/leave/mine", h.ListMyLeave)
		api.GET("/leave/pending-count", h.PendingLeaveCount)
		api.GET("/leave/balance", h.LeaveBalance)
		api.GET("/leave/allocations", h.ListAllocations)
		api.PUT("/leave/allocations", h.SetAllocation)
		api.GET("/leave/types", h.ListLeaveTypes)
		api.POST("/leave/types", h.CreateLeaveType)
		api.PUT("/leave/types/:id", h.UpdateLeaveType)
		api.DELETE("/leave/types/:id", h.DeactivateLeaveType)

		// Scheduling
		api.GET("/schedules", h.ListSchedules)
		api.POST("/schedules", h.CreateSchedule)
		api.POST("/schedules/bulk", h.BulkAssign)
		api.POST("/schedules/check", h.CheckSchedule)
		api.PUT("/schedules/:id", h.UpdateSchedule)
		api.DELETE("/schedules/:id", h.DeleteSchedule)
		api.GET("/calendar/:year/:month", h.MonthCalendar)
		api.GET("/unavailability", h.ListUnavailability)
		api.POST("/unavailability", h.AddUnavailability)
		api.DELETE("/unavailability/:id", h.DeleteUnavailability)
		api.GET("/restricted-days", h.ListRestrictedDays)
		api.POST("/restricted-days", h.AddRestrictedDay)
		api.DELETE("/restricted-days/:id", h.DeleteRestrictedDay)

		// Requirements and reports
		api.GET("/requirements", h.ListRequirements)
		api.PUT("/requirements", h.SetRequirement)
		api.GET("/requirements/summary", h.Summarize)
		api.GET("/reports/attendance", h.AttendanceReport)

		// Users, roles and audit
		api.GET("/users", h.ListUsers)
		api.POST("/users", h.CreateUser)
		api.PUT("/users/:id", h.UpdateUser)
		api.PUT("/users/:id/roles", h.SetUserRoles)
		api.GET("/roles", h.ListRoles)
		api.GET("/audit-logs", h.ListAuditLogs)

		// Tasks
		api.GET("/tasks", h.ListTasks)
		api.POST("/tasks", h.CreateTask)
		api.GET("/tasks/:id", h.GetTask)
		api.PATCH("/tasks/:id/status", h.UpdateTaskStatus)
		api.DELETE("/tasks/:id", h.DeleteTask)

		// Board
		api.GET("/board/posts", h.ListPosts)
		api.POST("/board/posts", h.CreatePost)
		api.POST("/board/posts/:id/pin", h.TogglePin)
		api.DELETE("/board/posts/:id", h.DeletePost)
		api.GET("/board/events", h.UpcomingEvents)

		// Notifications
		api.GET("/notifications", h.ListNotifications)
		api.GET("/notifications/unread-count", h.UnreadNotificationCount)
		api.GET("/notifications/popups", h.PopupNotifications)
		api.POST("/notifications/:id/read", h.MarkNotificationRead)
		api.PUT("/notifications/read-all", h.MarkAllNotificationsRead)

		// Expenses
		api.GET("/expense-categories", h.ListExpenseCategories)
		api.POST("/expense-categories", h.CreateExpenseCategory)
		api.POST("/expense-categories/:id/toggle", h.ToggleExpenseCategory)
		api.PUT("/expense-categories/:id/budget", h.SetCategoryBudget)
		api.GET("/expense-budget", h.BudgetReport)
		api.GET("/expenses", h.ListExpenses)
		api.POST("/expenses", h.SubmitExpense)
		api.POST("/expenses/:id/approve", h.ApproveExpense)
		api.POST("/expenses/:id/reject", h.RejectExpense)
		api.POST("/expenses/:id/reimburse", h.ReimburseExpense)
	}
}

// Health reports that the process is serving
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) SignUp(c *gin.Context) {
	var req models.SignUpRequest
	if !h.bind(c, &req) {
		return
	}

	resp, err := h.svc.SignUp(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !h.bind(c, &req) {
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Me(c *gin.Context) {
	resp, err := h.svc.Me(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// errorStatus maps service errors onto an HTTP status and error code
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, service.ErrPermissionDenied):
		return http.StatusForbidden, "PERMISSION_DENIED"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, service.ErrAlreadyExists):
		return http.StatusConflict, "ALREADY_EXISTS"
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, "CONFLICT_DETECTED"
	case errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, service.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Errorf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		message = "Internal server error"
	}
	c.JSON(status, models.ErrorResponse{Status: "error", Code: code, Message: message})
}

func (h *Handler) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Status:  "error",
		Code:    "INVALID_REQUEST",
		Message: message,
	})
}

// bind decodes the JSON body into dst and writes a 400 on failure
func (h *Handler) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.badRequest(c, "Invalid request: "+err.Error())
		return false
	}
	return true
}

// queryInt reads an optional integer query parameter
func (h *Handler) queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		h.badRequest(c, "Invalid "+name+" parameter")
		return 0, false
	}
	return v, true
}

// queryDate reads an optional YYYY-MM-DD query parameter
func (h *Handler) queryDate(c *gin.Context, name string) (models.Date, bool) {
	raw := c.Query(name)
	if raw == "" {
		return models.Date{}, true
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		h.badRequest(c, err.Error())
		return models.Date{}, false
	}
	return d, true
}

func (h *Handler) paramInt(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		h.badRequest(c, "Invalid "+name)
		return 0, false
	}
	return v, true
}

func queryBool(c *gin.Context, name string) bool {
	v, _ := strconv.ParseBool(c.Query(name))
	return v
}

func respondOK(c *gin.Context, message string) {
	c.JSON(http.StatusOK, models.StatusResponse{Status: "success", Message: message})
}
