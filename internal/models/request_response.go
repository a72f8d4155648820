package models

import "time"

// Request models
type SignUpRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	FirstName  string `json:"firstName" binding:"required"`
	LastName   string `json:"lastName" binding:"required"`
	Phone      string `json:"phone"`
	Department string `json:"department"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type CreateUserRequest struct {
	Email      string   `json:"email" binding:"required,email"`
	Password   string   `json:"password" binding:"required,min=8"`
	FirstName  string   `json:"firstName" binding:"required"`
	LastName   string   `json:"lastName" binding:"required"`
	Phone      string   `json:"phone"`
	Department string   `json:"department"`
	RoleIDs    []string `json:"roleIds"`
}

type UpdateUserRequest struct {
	FirstName  *string `json:"firstName"`
	LastName   *string `json:"lastName"`
	Phone      *string `json:"phone"`
	Department *string `json:"department"`
	IsActive   *bool   `json:"isActive"`
}

type SetUserRolesRequest struct {
	RoleIDs []string `json:"roleIds"`
}

// CreateLeaveRequest asks for leave. Hours > 0 makes it an hourly request,
// which must start and end on the same date.
type CreateLeaveRequest struct {
	LeaveTypeID string  `json:"leaveTypeId" binding:"required"`
	StartDate   Date    `json:"startDate"`
	EndDate     Date    `json:"endDate"`
	Hours       float64 `json:"hours" binding:"gte=0,lte=24"`
	Reason      string  `json:"reason"`
}

type ReviewLeaveRequest struct {
	Notes string `json:"notes"`
}

type SetAllocationRequest struct {
	UserID         string  `json:"userId" binding:"required"`
	LeaveTypeID    string  `json:"leaveTypeId" binding:"required"`
	Year           int     `json:"year" binding:"required,gte=2000,lte=2100"`
	AllocatedDays  float64 `json:"allocatedDays" binding:"gte=0"`
	AllocatedHours float64 `json:"allocatedHours" binding:"gte=0"`
}

type LeaveTypeRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	IsPaid      *bool  `json:"isPaid"`
	Color       string `json:"color"`
	IsActive    *bool  `json:"isActive"`
}

type ScheduleRequest struct {
	UserID             string    `json:"userId" binding:"required"`
	Date               Date      `json:"date"`
	StartTime          ClockTime `json:"startTime"`
	EndTime            ClockTime `json:"endTime"`
	Notes              string    `json:"notes"`
	OverrideRestricted bool      `json:"overrideRestricted"`
}

// BulkAssignRequest creates one shift per matching date in [StartDate, EndDate].
// Weekdays uses time.Weekday numbering (0 = Sunday); empty means Monday to Friday.
type BulkAssignRequest struct {
	UserID             string    `json:"userId" binding:"required"`
	StartDate          Date      `json:"startDate"`
	EndDate            Date      `json:"endDate"`
	Weekdays           []int     `json:"weekdays" binding:"dive,gte=0,lte=6"`
	StartTime          ClockTime `json:"startTime"`
	EndTime            ClockTime `json:"endTime"`
	Notes              string    `json:"notes"`
	OverrideRestricted bool      `json:"overrideRestricted"`
}

type UnavailabilityRequest struct {
	Date   Date   `json:"date"`
	Reason string `json:"reason"`
}

type RestrictedDayRequest struct {
	Date   Date   `json:"date"`
	Reason string `json:"reason"`
}

type SetRequirementRequest struct {
	Year          int      `json:"year" binding:"required,gte=2000,lte=2100"`
	Month         int      `json:"month" binding:"required,gte=1,lte=12"`
	RequiredHours *float64 `json:"requiredHours" binding:"omitempty,gte=0"`
	RequiredDays  *int     `json:"requiredDays" binding:"omitempty,gte=0"`
	Notes         string   `json:"notes"`
}

type CreateTaskRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description"`
	AssignedTo  *string `json:"assignedTo"`
	DueDate     Date    `json:"dueDate"`
	Priority    string  `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	Category    string  `json:"category"`
}

type UpdateTaskStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending in_progress completed cancelled"`
}

type CreatePostRequest struct {
	Title     string     `json:"title" binding:"required"`
	Content   string     `json:"content" binding:"required"`
	PostType  string     `json:"postType" binding:"omitempty,oneof=announcement event notice"`
	Priority  string     `json:"priority" binding:"omitempty,oneof=low normal high urgent"`
	ExpiresAt *time.Time `json:"expiresAt"`
	EventDate Date       `json:"eventDate"`
	NotifyAll bool       `json:"notifyAll"`
}

type SubmitExpenseRequest struct {
	CategoryID  string `json:"categoryId" binding:"required"`
	AmountCents int64  `json:"amountCents" binding:"required,gt=0"`
	Description string `json:"description" binding:"required"`
	Vendor      string `json:"vendor"`
	ExpenseDate Date   `json:"expenseDate"`
}

type RejectExpenseRequest struct {
	Reason string `json:"reason"`
}

type CreateExpenseCategoryRequest struct {
	Name        string `json:"name" binding:"required"`
	BudgetCents *int64 `json:"budgetCents" binding:"omitempty,gte=0"`
}

// SetBudgetRequest sets a category's monthly budget; a nil amount removes it
type SetBudgetRequest struct {
	BudgetCents *int64 `json:"budgetCents" binding:"omitempty,gte=0"`
}

// Response models
type AuthResponse struct {
	Status    string `json:"status"`
	UserID    string `json:"userId,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	IsAdmin   bool   `json:"isAdmin,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

type MeResponse struct {
	Status      string       `json:"status"`
	User        *User        `json:"user"`
	Roles       []string     `json:"roles"`
	Permissions []Permission `json:"permissions"`
}

type LeaveRequestResponse struct {
	Status  string        `json:"status"`
	Request *LeaveRequest `json:"request"`
	// RestrictedDay is set when the requested range contains a restricted day
	RestrictedDay bool `json:"restrictedDay,omitempty"`
}

// LeaveBalance is the remaining budget for one leave type in a year
type LeaveBalance struct {
	LeaveTypeID    string  `json:"leaveTypeId"`
	LeaveTypeName  string  `json:"leaveTypeName"`
	Year           int     `json:"year"`
	AllocatedDays  float64 `json:"allocatedDays"`
	UsedDays       float64 `json:"usedDays"`
	RemainingDays  float64 `json:"remainingDays"`
	AllocatedHours float64 `json:"allocatedHours"`
	UsedHours      float64 `json:"usedHours"`
	RemainingHours float64 `json:"remainingHours"`
}

// SkippedDate explains why BulkAssign did not create a shift on a date
type SkippedDate struct {
	Date   Date   `json:"date"`
	Reason string `json:"reason"`
}

type BulkAssignResponse struct {
	Status  string        `json:"status"`
	Created []Schedule    `json:"created"`
	Skipped []SkippedDate `json:"skipped"`
}

// CalendarDay is one cell of a monthly calendar
type CalendarDay struct {
	Date             Date           `json:"date"`
	Shifts           []Schedule     `json:"shifts"`
	Leave            []LeaveRequest `json:"leave"`
	Unavailable      bool           `json:"unavailable"`
	Restricted       bool           `json:"restricted"`
	RestrictedReason string         `json:"restrictedReason,omitempty"`
}

type MonthCalendar struct {
	UserID string        `json:"userId"`
	Year   int           `json:"year"`
	Month  int           `json:"month"`
	Days   []CalendarDay `json:"days"`
}

// RequirementStatus is the outcome of comparing scheduled work to a monthly requirement
type RequirementStatus string

const (
	RequirementMet           RequirementStatus = "met"
	RequirementUnmet         RequirementStatus = "unmet"
	RequirementNotConfigured RequirementStatus = "not_configured"
)

type RequirementSummary struct {
	UserID         string            `json:"userId"`
	Year           int               `json:"year"`
	Month          int               `json:"month"`
	ScheduledHours float64           `json:"scheduledHours"`
	ScheduledDays  int               `json:"scheduledDays"`
	RequiredHours  *float64          `json:"requiredHours,omitempty"`
	RequiredDays   *int              `json:"requiredDays,omitempty"`
	Status         RequirementStatus `json:"status"`
}

type AttendanceRow struct {
	UserID         string            `json:"userId"`
	Name           string            `json:"name"`
	Department     string            `json:"department"`
	ScheduledDays  int               `json:"scheduledDays"`
	ScheduledHours float64           `json:"scheduledHours"`
	LeaveDays      int               `json:"leaveDays"`
	Status         RequirementStatus `json:"status"`
}

type AttendanceReport struct {
	Year  int             `json:"year"`
	Month int             `json:"month"`
	Rows  []AttendanceRow `json:"rows"`
}

// TaskView adds derived fields to a task
type TaskView struct {
	Task
	Overdue bool `json:"overdue"`
}

// CategoryBudget compares a category's spend in a month with its budget.
// Spend counts approved and reimbursed claims.
type CategoryBudget struct {
	CategoryID     string  `json:"categoryId"`
	Name           string  `json:"name"`
	BudgetCents    *int64  `json:"budgetCents,omitempty"`
	SpentCents     int64   `json:"spentCents"`
	RemainingCents *int64  `json:"remainingCents,omitempty"`
	UsagePercent   float64 `json:"usagePercent"`
	OverBudget     bool    `json:"overBudget"`
}

type BudgetReport struct {
	Year             int              `json:"year"`
	Month            int              `json:"month"`
	Categories       []CategoryBudget `json:"categories"`
	TotalBudgetCents int64            `json:"totalBudgetCents"`
	TotalSpentCents  int64            `json:"totalSpentCents"`
}

type CountResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
