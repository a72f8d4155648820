package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rongwang/staff-scheduler/internal/models"
)

// ErrDuplicate is returned when an insert violates a unique constraint
var ErrDuplicate = errors.New("duplicate record")

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	// InTx runs fn against a repository bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	// Nested calls reuse the outer transaction.
	InTx(ctx context.Context, fn func(repo Repository) error) error

	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
	CountUsers(ctx context.Context) (int, error)
	ListUsers(ctx context.Context, activeOnly bool) ([]models.User, error)
	LockUser(ctx context.Context, id string) error
	ListUserIDsWithPermission(ctx context.Context, perm models.Permission) ([]string, error)

	// Role and permission operations
	UpsertPermission(ctx context.Context, perm models.PermissionDef) error
	CreateRole(ctx context.Context, role *models.Role) error
	GetRoleByID(ctx context.Context, id string) (*models.Role, error)
	GetRoleByName(ctx context.Context, name string) (*models.Role, error)
	ListRoles(ctx context.Context) ([]models.Role, error)
	SetRolePermissions(ctx context.Context, roleID string, perms []models.Permission) error
	GetRolePermissions(ctx context.Context, roleID string) ([]models.Permission, error)
	SetUserRoles(ctx context.Context, userID string, roleIDs []string) error
	GetUserRoles(ctx context.Context, userID string) ([]models.Role, error)
	GetUserPermissions(ctx context.Context, userID string) ([]models.Permission, error)

	// Leave type operations
	CreateLeaveType(ctx context.Context, lt *models.LeaveType) error
	GetLeaveType(ctx context.Context, id string) (*models.LeaveType, error)
	GetLeaveTypeByName(ctx context.Context, name string) (*models.LeaveType, error)
	ListLeaveTypes(ctx context.Context, activeOnly bool) ([]models.LeaveType, error)
	UpdateLeaveType(ctx context.Context, lt *models.LeaveType) error

	// Leave allocation operations
	EnsureAllocation(ctx context.Context, userID, leaveTypeID string, year int) error
	GetAllocation(ctx context.Context, userID, leaveTypeID string, year int) (*models.LeaveAllocation, error)
	GetAllocationForUpdate(ctx context.Context, userID, leaveTypeID string, year int) (*models.LeaveAllocation, error)
	UpdateAllocationUsage(ctx context.Context, id string, usedDays, usedHours float64) error
	UpdateAllocationAmounts(ctx context.Context, id string, allocatedDays, allocatedHours float64) error
	ListAllocationsByUser(ctx context.Context, userID string, year int) ([]models.LeaveAllocation, error)
	ListAllocationsByYear(ctx context.Context, year int) ([]models.LeaveAllocation, error)

	// Leave request operations
	CreateLeaveRequest(ctx context.Context, req *models.LeaveRequest) error
	GetLeaveRequest(ctx context.Context, id string) (*models.LeaveRequest, error)
	GetLeaveRequestForUpdate(ctx context.Context, id string) (*models.LeaveRequest, error)
	UpdateLeaveRequestReview(ctx context.Context, req *models.LeaveRequest) error
	DeleteLeaveRequest(ctx context.Context, id string) error
	ListLeaveRequests(ctx context.Context, filter LeaveRequestFilter) ([]models.LeaveRequest, error)
	CountLeaveRequests(ctx context.Context, status models.LeaveStatus) (int, error)
	ListApprovedLeaveOverlapping(ctx context.Context, userID string, from, to models.Date) ([]models.LeaveRequest, error)

	// Schedule operations
	CreateSchedule(ctx context.Context, s *models.Schedule) error
	GetSchedule(ctx context.Context, id string) (*models.Schedule, error)
	UpdateSchedule(ctx context.Context, s *models.Schedule) error
	DeleteSchedule(ctx context.Context, id string) error
	ListSchedules(ctx context.Context, filter ScheduleFilter) ([]models.Schedule, error)

	// Unavailability operations
	CreateUnavailability(ctx context.Context, u *models.Unavailability) error
	GetUnavailability(ctx context.Context, id string) (*models.Unavailability, error)
	GetUnavailabilityOn(ctx context.Context, userID string, date models.Date) (*models.Unavailability, error)
	ListUnavailability(ctx context.Context, userID string, from, to models.Date) ([]models.Unavailability, error)
	DeleteUnavailability(ctx context.Context, id string) error

	// Restricted day operations
	CreateRestrictedDay(ctx context.Context, d *models.RestrictedDay) error
	GetRestrictedDay(ctx context.Context, id string) (*models.RestrictedDay, error)
	GetRestrictedDayByDate(ctx context.Context, date models.Date) (*models.RestrictedDay, error)
	ListRestrictedDays(ctx context.Context, from, to models.Date) ([]models.RestrictedDay, error)
	DeleteRestrictedDay(ctx context.Context, id string) error

	// Monthly requirement operations
	UpsertRequirement(ctx context.Context, req *models.MonthlyRequirement) error
	GetRequirement(ctx context.Context, year, month int) (*models.MonthlyRequirement, error)
	ListRequirements(ctx context.Context, year int) ([]models.MonthlyRequirement, error)

	// Task operations
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context, assignedTo string) ([]models.Task, error)

	// Board operations
	CreatePost(ctx context.Context, post *models.BoardPost) error
	GetPost(ctx context.Context, id string) (*models.BoardPost, error)
	UpdatePost(ctx context.Context, post *models.BoardPost) error
	DeletePost(ctx context.Context, id string) error
	ListActivePosts(ctx context.Context, now time.Time) ([]models.BoardPost, error)
	ListUpcomingEvents(ctx context.Context, from models.Date, limit int) ([]models.BoardPost, error)

	// Notification operations
	CreateNotification(ctx context.Context, n *models.Notification) error
	GetNotification(ctx context.Context, id string) (*models.Notification, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
	TakePopupNotifications(ctx context.Context, userID string) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error

	// Audit operations
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
	ListAuditLogs(ctx context.Context, limit, offset int) ([]models.AuditLog, error)

	// Expense operations
	UpsertExpenseCategory(ctx context.Context, name string) error
	CreateExpenseCategory(ctx context.Context, c *models.ExpenseCategory) error
	UpdateExpenseCategory(ctx context.Context, c *models.ExpenseCategory) error
	ListExpenseCategories(ctx context.Context, activeOnly bool) ([]models.ExpenseCategory, error)
	GetExpenseCategory(ctx context.Context, id string) (*models.ExpenseCategory, error)
	SumExpensesByCategory(ctx context.Context, from, to models.Date, statuses []string) (map[string]int64, error)
	CreateExpense(ctx context.Context, e *models.Expense) error
	GetExpenseForUpdate(ctx context.Context, id string) (*models.Expense, error)
	UpdateExpense(ctx context.Context, e *models.Expense) error
	ListExpenses(ctx context.Context, userID string) ([]models.Expense, error)
}

// LeaveRequestFilter narrows ListLeaveRequests. Empty fields match everything.
type LeaveRequestFilter struct {
	UserID string
	Status models.LeaveStatus
	Year   int
}

// ScheduleFilter narrows ListSchedules. Zero dates leave that side open.
type ScheduleFilter struct {
	UserID string
	From   models.Date
	To     models.Date
}

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db   *sqlx.DB
	ext  sqlx.ExtContext
	inTx bool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db:  db,
		ext: db,
	}
}

// GetDB returns the underlying database connection
func (r *PostgresRepository) GetDB() *sqlx.DB {
	return r.db
}

func (r *PostgresRepository) InTx(ctx context.Context, fn func(repo Repository) error) (err error) {
	if r.inTx {
		return fn(r)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(&PostgresRepository{db: r.db, ext: tx, inTx: true}); err != nil {
		return err
	}

	return tx.Commit()
}

// get wraps sqlx.GetContext and turns sql.ErrNoRows into (false, nil)
func (r *PostgresRepository) get(ctx context.Context, dest interface{}, query string, args ...interface{}) (bool, error) {
	err := sqlx.GetContext(ctx, r.ext, dest, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := r.ext.ExecContext(ctx, query, args...)
	return mapError(err)
}

// mapError converts driver errors the service layer cares about
func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	}
	return err
}

func newID(id *string) {
	if *id == "" {
		*id = uuid.New().String()
	}
}

// User repository methods
func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, password, first_name, last_name, phone, department,
			is_active, is_first_account, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	newID(&user.ID)

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	return r.exec(ctx, query,
		user.ID, user.Email, user.Password, user.FirstName, user.LastName, user.Phone,
		user.Department, user.IsActive, user.IsFirstAccount, user.CreatedAt, user.UpdatedAt)
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	found, err := r.get(ctx, &user, `SELECT * FROM users WHERE LOWER(email) = LOWER($1)`, email)
	if err != nil || !found {
		return nil, err // nil, nil when not found
	}
	return &user, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	found, err := r.get(ctx, &user, `SELECT * FROM users WHERE id = $1`, id)
	if err != nil || !found {
		return nil, err
	}
	return &user, nil
}

func (r *PostgresRepository) UpdateUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	return r.exec(ctx, `
		UPDATE users SET first_name = $2, last_name = $3, phone = $4, department = $5,
			is_active = $6, updated_at = $7
		WHERE id = $1`,
		user.ID, user.FirstName, user.LastName, user.Phone, user.Department, user.IsActive, user.UpdatedAt)
}

func (r *PostgresRepository) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	return r.exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, userID, at)
}

func (r *PostgresRepository) CountUsers(ctx context.Context) (int, error) {
	var n int
	_, err := r.get(ctx, &n, `SELECT COUNT(*) FROM users`)
	return n, err
}

func (r *PostgresRepository) ListUsers(ctx context.Context, activeOnly bool) ([]models.User, error) {
	query := `SELECT * FROM users`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY last_name, first_name`

	var users []models.User
	if err := sqlx.SelectContext(ctx, r.ext, &users, query); err != nil {
		return nil, err
	}
	return users, nil
}

// LockUser takes a row lock on the user for the rest of the transaction.
// Outside a transaction it is a no-op.
func (r *PostgresRepository) LockUser(ctx context.Context, id string) error {
	if !r.inTx {
		return nil
	}
	var one int
	_, err := r.get(ctx, &one, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, id)
	return err
}

// ListUserIDsWithPermission returns active users granted perm through a role.
// The first account holds every permission.
func (r *PostgresRepository) ListUserIDsWithPermission(ctx context.Context, perm models.Permission) ([]string, error) {
	var ids []string
	err := sqlx.SelectContext(ctx, r.ext, &ids, `
		SELECT u.id FROM users u
		WHERE u.is_active = TRUE
		  AND (u.is_first_account = TRUE OR EXISTS (
			SELECT 1 FROM user_roles ur
			JOIN role_permissions rp ON rp.role_id = ur.role_id
			WHERE ur.user_id = u.id AND rp.permission_code = $1))
		ORDER BY u.created_at`, perm)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Role and permission repository methods
func (r *PostgresRepository) UpsertPermission(ctx context.Context, perm models.PermissionDef) error {
	return r.exec(ctx, `
		INSERT INTO permissions (code, name, description, category)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name,
			description = EXCLUDED.description, category = EXCLUDED.category`,
		perm.Code, perm.Name, perm.Description, perm.Category)
}

func (r *PostgresRepository) CreateRole(ctx context.Context, role *models.Role) error {
	newID(&role.ID)
	role.CreatedAt = time.Now().UTC()
	return r.exec(ctx, `
		INSERT INTO roles (id, name, description, is_system, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		role.ID, role.Name, role.Description, role.IsSystem, role.CreatedAt)
}

func (r *PostgresRepository) GetRoleByID(ctx context.Context, id string) (*models.Role, error) {
	var role models.Role
	found, err := r.get(ctx, &role, `SELECT * FROM roles WHERE id = $1`, id)
	if err != nil || !found {
		return nil, err
	}
	return &role, nil
}

func (r *PostgresRepository) GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	found, err := r.get(ctx, &role, `SELECT * FROM roles WHERE name = $1`, name)
	if err != nil || !found {
		return nil, err
	}
	return &role, nil
}

func (r *PostgresRepository) ListRoles(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	if err := sqlx.SelectContext(ctx, r.ext, &roles, `SELECT * FROM roles ORDER BY name`); err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *PostgresRepository) SetRolePermissions(ctx context.Context, roleID string, perms []models.Permission) error {
	if err := r.exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return err
	}
	for _, p := range perms {
		if err := r.exec(ctx,
			`INSERT INTO role_permissions (role_id, permission_code) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			roleID, p); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) GetRolePermissions(ctx context.Context, roleID string) ([]models.Permission, error) {
	var perms []models.Permission
	err := sqlx.SelectContext(ctx, r.ext, &perms,
		`SELECT permission_code FROM role_permissions WHERE role_id = $1 ORDER BY permission_code`, roleID)
	if err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *PostgresRepository) SetUserRoles(ctx context.Context, userID string, roleIDs []string) error {
	if err := r.exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return err
	}
	for _, id := range roleIDs {
		if err := r.exec(ctx,
			`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			userID, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) GetUserRoles(ctx context.Context, userID string) ([]models.Role, error) {
	var roles []models.Role
	err := sqlx.SelectContext(ctx, r.ext, &roles, `
		SELECT r.* FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name`, userID)
	if err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *PostgresRepository) GetUserPermissions(ctx context.Context, userID string) ([]models.Permission, error) {
	var perms []models.Permission
	err := sqlx.SelectContext(ctx, r.ext, &perms, `
		SELECT DISTINCT rp.permission_code FROM role_permissions rp
		JOIN user_roles ur ON ur.role_id = rp.role_id
		WHERE ur.user_id = $1
		ORDER BY rp.permission_code`, userID)
	if err != nil {
		return nil, err
	}
	return perms, nil
}
