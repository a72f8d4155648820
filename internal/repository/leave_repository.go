package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rongwang/staff-scheduler/internal/models"
)

// Leave type repository methods
func (r *PostgresRepository) CreateLeaveType(ctx context.Context, lt *models.LeaveType) error {
	newID(&lt.ID)
	lt.CreatedAt = time.Now().UTC()
	return r.exec(ctx, `
		INSERT INTO leave_types (id, name, description, is_paid, color, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		lt.ID, lt.Name, lt.Description, lt.IsPaid, lt.Color, lt.IsActive, lt.CreatedAt)
}

func (r *PostgresRepository) GetLeaveType(ctx context.Context, id string) (*models.LeaveType, error) {
	var lt models.LeaveType
	found, err := r.get(ctx, &lt, `SELECT * FROM leave_types WHERE id = $1`, id)
	if err != nil || !found {
		return nil, err
	}
	return &lt, nil
}

func (r *PostgresRepository) GetLeaveTypeByName(ctx context.Context, name string) (*models.LeaveType, error) {
	var lt models.LeaveType
	found, err := r.get(ctx, &lt, `SELECT * FROM leave_types WHERE name = $1`, name)
	if err != nil || !found {
		return nil, err
	}
	return &lt, nil
}

func (r *PostgresRepository) ListLeaveTypes(ctx context.Context, activeOnly bool) ([]models.LeaveType, error) {
	query := `SELECT * FROM leave_types`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY name`

	var types []models.LeaveType
	if err := sqlx.SelectContext(ctx, r.ext, &types, query); err != nil {
		return nil, err
	}
	return types, nil
}

func (r *PostgresRepository) UpdateLeaveType(ctx context.Context, lt *models.LeaveType) error {
	return r.exec(ctx, `
		UPDATE leave_types SET name = $2, description = $3, is_paid = $4, color = $5, is_active = $6
		WHERE id = $1`,
		lt.ID, lt.Name, lt.Description, lt.IsPaid, lt.Color, lt.IsActive)
}

// Leave allocation repository methods

// EnsureAllocation inserts an empty allocation unless one already exists
func (r *PostgresRepository) EnsureAllocation(ctx context.Context, userID, leaveTypeID string, year int) error {
	now := time.Now().UTC()
	return r.exec(ctx, `
		INSERT INTO leave_allocations (id, user_id, leave_type_id, year, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id, leave_type_id, year) DO NOTHING`,
		uuid.New().String(), userID, leaveTypeID, year, now)
}

func (r *PostgresRepository) GetAllocation(ctx context.Context, userID, leaveTypeID string, year int) (*models.LeaveAllocation, error) {
	var a models.LeaveAllocation
	found, err := r.get(ctx, &a, `
		SELECT * FROM leave_allocations
		WHERE user_id = $1 AND leave_type_id = $2 AND year = $3`,
		userID, leaveTypeID, year)
	if err != nil || !found {
		return nil, err
	}
	return &a, nil
}

// GetAllocationForUpdate locks the allocation row until the surrounding transaction ends
func (r *PostgresRepository) GetAllocationForUpdate(ctx context.Context, userID, leaveTypeID string, year int) (*models.LeaveAllocation, error) {
	if !r.inTx {
		return nil, fmt.Errorf("GetAllocationForUpdate requires a transaction")
	}

	var a models.LeaveAllocation
	found, err := r.get(ctx, &a, `
		SELECT * FROM leave_allocations
		WHERE user_id = $1 AND leave_type_id = $2 AND year = $3
		FOR UPDATE`,
		userID, leaveTypeID, year)
	if err != nil || !found {
		return nil, err
	}
	return &a, nil
}

func (r *PostgresRepository) UpdateAllocationUsage(ctx context.Context, id string, usedDays, usedHours float64) error {
	return r.exec(ctx, `
		UPDATE leave_allocations SET used_days = $2, used_hours = $3, updated_at = $4
		WHERE id = $1`,
		id, usedDays, usedHours, time.Now().UTC())
}

func (r *PostgresRepository) UpdateAllocationAmounts(ctx context.Context, id string, allocatedDays, allocatedHours float64) error {
	return r.exec(ctx, `
		UPDATE leave_allocations SET allocated_days = $2, allocated_hours = $3, updated_at = $4
		WHERE id = $1`,
		id, allocatedDays, allocatedHours, time.Now().UTC())
}

func (r *PostgresRepository) ListAllocationsByUser(ctx context.Context, userID string, year int) ([]models.LeaveAllocation, error) {
	var out []models.LeaveAllocation
	err := sqlx.SelectContext(ctx, r.ext, &out, `
		SELECT * FROM leave_allocations WHERE user_id = $1 AND year = $2
		ORDER BY leave_type_id`, userID, year)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) ListAllocationsByYear(ctx context.Context, year int) ([]models.LeaveAllocation, error) {
	var out []models.LeaveAllocation
	err := sqlx.SelectContext(ctx, r.ext, &out, `
		SELECT * FROM leave_allocations WHERE year = $1
		ORDER BY user_id, leave_type_id`, year)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Leave request repository methods
func (r *PostgresRepository) CreateLeaveRequest(ctx context.Context, req *models.LeaveRequest) error {
	newID(&req.ID)
	req.CreatedAt = time.Now().UTC()
	if req.Status == "" {
		req.Status = models.LeaveStatusPending
	}
	return r.exec(ctx, `
		INSERT INTO leave_requests (id, user_id, leave_type_id, start_date, end_date, days, hours,
			reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		req.ID, req.UserID, req.LeaveTypeID, req.StartDate, req.EndDate, req.Days, req.Hours,
		req.Reason, req.Status, req.CreatedAt)
}

func (r *PostgresRepository) GetLeaveRequest(ctx context.Context, id string) (*models.LeaveRequest, error) {
	var req models.LeaveRequest
	found, err := r.get(ctx, &req, `SELECT * FROM leave_requests WHERE id = $1`, id)
	if err != nil || !found {
		return nil, err
	}
	return &req, nil
}

// GetLeaveRequestForUpdate locks the request row so concurrent reviewers serialize
func (r *PostgresRepository) GetLeaveRequestForUpdate(ctx context.Context, id string) (*models.LeaveRequest, error) {
	if !r.inTx {
		return nil, fmt.Errorf("GetLeaveRequestForUpdate requires a transaction")
	}

	var req models.LeaveRequest
	found, err := r.get(ctx, &req, `SELECT * FROM leave_requests WHERE id = $1 FOR UPDATE`, id)
	if err != nil || !found {
		return nil, err
	}
	return &req, nil
}

func (r *PostgresRepository) UpdateLeaveRequestReview(ctx context.Context, req *models.LeaveRequest) error {
	return r.exec(ctx, `
		UPDATE leave_requests SET status = $2, reviewed_by = $3, reviewed_at = $4, review_notes = $5
		WHERE id = $1`,
		req.ID, req.Status, req.ReviewedBy, req.ReviewedAt, req.ReviewNotes)
}

func (r *PostgresRepository) DeleteLeaveRequest(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM leave_requests WHERE id = $1`, id)
}

func (r *PostgresRepository) ListLeaveRequests(ctx context.Context, filter LeaveRequestFilter) ([]models.LeaveRequest, error) {
	query := `SELECT * FROM leave_requests WHERE 1 = 1`
	var args []interface{}

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		query += fmt.Sprintf(` AND user_id = $%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.Year != 0 {
		args = append(args, filter.Year)
		query += fmt.Sprintf(` AND EXTRACT(YEAR FROM start_date) = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`

	var out []models.LeaveRequest
	if err := sqlx.SelectContext(ctx, r.ext, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) CountLeaveRequests(ctx context.Context, status models.LeaveStatus) (int, error) {
	var n int
	_, err := r.get(ctx, &n, `SELECT COUNT(*) FROM leave_requests WHERE status = $1`, status)
	return n, err
}

// ListApprovedLeaveOverlapping returns approved requests intersecting [from, to].
// An empty userID matches every user.
func (r *PostgresRepository) ListApprovedLeaveOverlapping(ctx context.Context, userID string, from, to models.Date) ([]models.LeaveRequest, error) {
	query := `
		SELECT * FROM leave_requests
		WHERE status = $1 AND start_date <= $2 AND end_date >= $3`
	args := []interface{}{models.LeaveStatusApproved, to, from}
	if userID != "" {
		query += ` AND user_id = $4`
		args = append(args, userID)
	}
	query += ` ORDER BY start_date`

	var out []models.LeaveRequest
	if err := sqlx.SelectContext(ctx, r.ext, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}
