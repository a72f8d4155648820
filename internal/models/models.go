package models

import (
	"time"
)

// User represents a member of staff
type User struct {
	ID             string     `db:"id" json:"id"`
	Email          string     `db:"email" json:"email"`
	Password       string     `db:"password" json:"-"` // Password hash, not returned in JSON
	FirstName      string     `db:"first_name" json:"firstName"`
	LastName       string     `db:"last_name" json:"lastName"`
	Phone          string     `db:"phone" json:"phone"`
	Department     string     `db:"department" json:"department"`
	IsActive       bool       `db:"is_active" json:"isActive"`
	IsFirstAccount bool       `db:"is_first_account" json:"isFirstAccount"`
	LastLogin      *time.Time `db:"last_login" json:"lastLogin,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// FullName returns "First Last"
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// Role groups permissions
type Role struct {
	ID          string       `db:"id" json:"id"`
	Name        string       `db:"name" json:"name"`
	Description string       `db:"description" json:"description"`
	IsSystem    bool         `db:"is_system" json:"isSystem"`
	CreatedAt   time.Time    `db:"created_at" json:"createdAt"`
	Permissions []Permission `db:"-" json:"permissions,omitempty"`
}

// LeaveType is a named category of leave
type LeaveType struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	IsPaid      bool      `db:"is_paid" json:"isPaid"`
	Color       string    `db:"color" json:"color"`
	IsActive    bool      `db:"is_active" json:"isActive"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// LeaveAllocation is the per user, leave type and year budget
type LeaveAllocation struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"userId"`
	LeaveTypeID    string    `db:"leave_type_id" json:"leaveTypeId"`
	Year           int       `db:"year" json:"year"`
	AllocatedDays  float64   `db:"allocated_days" json:"allocatedDays"`
	AllocatedHours float64   `db:"allocated_hours" json:"allocatedHours"`
	UsedDays       float64   `db:"used_days" json:"usedDays"`
	UsedHours      float64   `db:"used_hours" json:"usedHours"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// RemainingDays is allocated minus used days
func (a *LeaveAllocation) RemainingDays() float64 { return a.AllocatedDays - a.UsedDays }

// RemainingHours is allocated minus used hours
func (a *LeaveAllocation) RemainingHours() float64 { return a.AllocatedHours - a.UsedHours }

// LeaveStatus is the lifecycle state of a leave request
type LeaveStatus string

const (
	LeaveStatusPending  LeaveStatus = "pending"
	LeaveStatusApproved LeaveStatus = "approved"
	LeaveStatusRejected LeaveStatus = "rejected"
)

// IsTerminal reports whether no further transition is allowed
func (s LeaveStatus) IsTerminal() bool {
	return s == LeaveStatusApproved || s == LeaveStatusRejected
}

// LeaveRequest is a request for time off. Days and Hours are the quantities
// drawn from the allocation when the request is approved.
type LeaveRequest struct {
	ID          string      `db:"id" json:"id"`
	UserID      string      `db:"user_id" json:"userId"`
	LeaveTypeID string      `db:"leave_type_id" json:"leaveTypeId"`
	StartDate   Date        `db:"start_date" json:"startDate"`
	EndDate     Date        `db:"end_date" json:"endDate"`
	Days        float64     `db:"days" json:"days"`
	Hours       float64     `db:"hours" json:"hours"`
	Reason      string      `db:"reason" json:"reason"`
	Status      LeaveStatus `db:"status" json:"status"`
	ReviewedBy  *string     `db:"reviewed_by" json:"reviewedBy,omitempty"`
	ReviewedAt  *time.Time  `db:"reviewed_at" json:"reviewedAt,omitempty"`
	ReviewNotes string      `db:"review_notes" json:"reviewNotes"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
}

// Covers reports whether d lies within [StartDate, EndDate]
func (r *LeaveRequest) Covers(d Date) bool {
	return !d.Before(r.StartDate) && !d.After(r.EndDate)
}

// Schedule is one shift for a user on a date
type Schedule struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	Date      Date      `db:"date" json:"date"`
	StartTime ClockTime `db:"start_time" json:"startTime"`
	EndTime   ClockTime `db:"end_time" json:"endTime"`
	Notes     string    `db:"notes" json:"notes"`
	CreatedBy *string   `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Hours is the length of the shift
func (s *Schedule) Hours() float64 {
	return s.StartTime.HoursUntil(s.EndTime)
}

// RestrictedDay is a date that needs elevated approval to schedule against
type RestrictedDay struct {
	ID        string    `db:"id" json:"id"`
	Date      Date      `db:"date" json:"date"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedBy *string   `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Unavailability is an explicit blackout date for a user
type Unavailability struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	Date      Date      `db:"date" json:"date"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// MonthlyRequirement is the reporting target for a month
type MonthlyRequirement struct {
	ID            string    `db:"id" json:"id"`
	Year          int       `db:"year" json:"year"`
	Month         int       `db:"month" json:"month"`
	RequiredHours *float64  `db:"required_hours" json:"requiredHours,omitempty"`
	RequiredDays  *int      `db:"required_days" json:"requiredDays,omitempty"`
	Notes         string    `db:"notes" json:"notes"`
	CreatedBy     *string   `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// Task statuses
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusCancelled  = "cancelled"
)

// Task is a unit of work assigned to a user
type Task struct {
	ID          string     `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	AssignedTo  *string    `db:"assigned_to" json:"assignedTo,omitempty"`
	AssignedBy  *string    `db:"assigned_by" json:"assignedBy,omitempty"`
	DueDate     Date       `db:"due_date" json:"dueDate"`
	Priority    string     `db:"priority" json:"priority"`
	Status      string     `db:"status" json:"status"`
	Category    string     `db:"category" json:"category"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
	CompletedAt *time.Time `db:"completed_at" json:"completedAt,omitempty"`
}

// IsOverdue reports whether an open task is past its due date
func (t *Task) IsOverdue(today Date) bool {
	if t.DueDate.IsZero() || t.Status == TaskStatusCompleted || t.Status == TaskStatusCancelled {
		return false
	}
	return today.After(t.DueDate)
}

// BoardPost is an announcement on the internal board
type BoardPost struct {
	ID        string     `db:"id" json:"id"`
	Title     string     `db:"title" json:"title"`
	Content   string     `db:"content" json:"content"`
	PostType  string     `db:"post_type" json:"postType"`
	Priority  string     `db:"priority" json:"priority"`
	CreatedBy *string    `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
	ExpiresAt *time.Time `db:"expires_at" json:"expiresAt,omitempty"`
	EventDate Date       `db:"event_date" json:"eventDate"`
	IsPinned  bool       `db:"is_pinned" json:"isPinned"`
	IsActive  bool       `db:"is_active" json:"isActive"`
}

// Notification is a message shown to a user
type Notification struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"userId"`
	Title       string    `db:"title" json:"title"`
	Message     string    `db:"message" json:"message"`
	Type        string    `db:"type" json:"type"`
	IsRead      bool      `db:"is_read" json:"isRead"`
	IsPopup     bool      `db:"is_popup" json:"isPopup"`
	RelatedID   string    `db:"related_id" json:"relatedId"`
	RelatedType string    `db:"related_type" json:"relatedType"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// AuditLog records an action taken by a user
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"userId,omitempty"`
	Action     string    `db:"action" json:"action"`
	EntityType string    `db:"entity_type" json:"entityType"`
	EntityID   string    `db:"entity_id" json:"entityId"`
	Details    string    `db:"details" json:"details"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// ExpenseCategory groups expenses. BudgetCents is the monthly spending
// limit; nil means the category is not budgeted.
type ExpenseCategory struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	IsActive    bool   `db:"is_active" json:"isActive"`
	BudgetCents *int64 `db:"budget_cents" json:"budgetCents,omitempty"`
}

// Expense statuses
const (
	ExpenseStatusPending    = "pending"
	ExpenseStatusApproved   = "approved"
	ExpenseStatusRejected   = "rejected"
	ExpenseStatusReimbursed = "reimbursed"
)

// Expense is a claim submitted by a user. Amounts are held in cents.
type Expense struct {
	ID              string     `db:"id" json:"id"`
	UserID          string     `db:"user_id" json:"userId"`
	CategoryID      string     `db:"category_id" json:"categoryId"`
	AmountCents     int64      `db:"amount_cents" json:"amountCents"`
	Description     string     `db:"description" json:"description"`
	Vendor          string     `db:"vendor" json:"vendor"`
	ExpenseDate     Date       `db:"expense_date" json:"expenseDate"`
	Status          string     `db:"status" json:"status"`
	ApprovedBy      *string    `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
	RejectionReason string     `db:"rejection_reason" json:"rejectionReason"`
	ReimbursedAt    *time.Time `db:"reimbursed_at" json:"reimbursedAt,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
}
