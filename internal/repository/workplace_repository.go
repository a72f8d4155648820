package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rongwang/staff-scheduler/internal/models"
)

// Task repository methods
func (r *PostgresRepository) CreateTask(ctx context.Context, task *models.Task) error {
	newID(&task.ID)
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
	return r.exec(ctx, `
		INSERT INTO tasks (id, title, description, assigned_to, assigned_by, due_date, priority,
			status, category, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		task.ID, task.Title, task.Description, task.AssignedTo, task.AssignedBy, task.DueDate,
		task.Priority, task.Status, task.Category, task.CreatedAt, task.UpdatedAt)
}

func (r *PostgresRepository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	found, err := r.get(ctx, &task, `SELECT * FROM tasks WHERE id = $1`, id)
	if err != nil || !found {
		return nil, err
	}
	return &task, nil
}

func (r *PostgresRepository) UpdateTask(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = time.Now().UTC()
	return r.exec(ctx, `
		UPDATE tasks SET title = $2, description = $3, assigned_to = $4, due_date = $5, priority = $6,
			status = $7, category = $8, updated_at = $9, completed_at = $10
		WHERE id = $1`,
		task.ID, task.Title, task.Description, task.AssignedTo, task.DueDate, task.Priority,
		task.Status, task.Category, task.UpdatedAt, task.CompletedAt)
}

func (r *PostgresRepository) DeleteTask(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
}

// ListTasks returns tasks assigned to assignedTo, or every task when it is empty
func (r *PostgresRepository) ListTasks(ctx context.Context, assignedTo string) ([]models.Task, error) {
	query := `SELECT * FROM tasks`
	var args []interface{}
	if assignedTo != "" {
		query += ` WHERE assigned_to = $1`
		args = append(args, assignedTo)
	}
	query += ` ORDER BY due_date ASC NULLS LAST, created_at DESC`

	var out []models.Task
	if err := sqlx.SelectContext(ctx, r.ext, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// Board repository methods
func (r *PostgresRepository) CreatePost(ctx context.Context, post *models.BoardPost) error {
	newID(&post.ID)
	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now
	return r.exec(ctx, `
		INSERT INTO board_posts (id, title, content, post_type, priority, created_by, created_at,
			updated_at, expires_at, event_date, is_pinned, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		post.ID, post.Title, post.Content, post.PostType, post.Priority, post.CreatedBy, post.CreatedAt,
		post.UpdatedAt, post.ExpiresAt, post.EventDate, post.IsPinned, post.IsActive)
}

func (r *PostgresRepository) GetPost(ctx context.Context, id string) (*models.BoardPost, error) {
	var post models.BoardPost
	found, err := r.get(ctx, &post, `SELECT * FROM board_posts WHERE id = $1`, id)
	if err != nil || !found {
		return nil, err
	}
	return &post, nil
}

func (r *PostgresRepository) UpdatePost(ctx context.Context, post *models.BoardPost) error {
	post.UpdatedAt = time.Now().UTC()
	return r.exec(ctx, `
		UPDATE board_posts SET title = $2, content = $3, priority = $4, expires_at = $5,
			event_date = $6, is_pinned = $7, is_active = $8, updated_at = $9
		WHERE id = $1`,
		post.ID, post.Title, post.Content, post.Priority, post.ExpiresAt, post.EventDate,
		post.IsPinned, post.IsActive, post.UpdatedAt)
}

func (r *PostgresRepository) DeletePost(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM board_posts WHERE id = $1`, id)
}

// ListActivePosts returns visible posts: pinned first, then by priority, newest first
func (r *PostgresRepository) ListActivePosts(ctx context.Context, now time.Time) ([]models.BoardPost, error) {
	var out []models.BoardPost
	err := sqlx.SelectContext(ctx, r.ext, &out, `
		SELECT * FROM board_posts
		WHERE is_active = TRUE AND (expires_at IS NULL OR expires_at > $1)
		ORDER BY is_pinned DESC,
			CASE priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'normal' THEN 2 ELSE 3 END,
			created_at DESC`, now)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) ListUpcomingEvents(ctx context.Context, from models.Date, limit int) ([]models.BoardPost, error) {
	var out []models.BoardPost
	err := sqlx.SelectContext(ctx, r.ext, &out, `
		SELECT * FROM board_posts
		WHERE is_active = TRUE AND post_type = 'event' AND event_date >= $1
		ORDER BY event_date
		LIMIT $2`, from, limit)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Notification repository methods
func (r *PostgresRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	newID(&n.ID)
	n.CreatedAt = time.Now().UTC()
	return r.exec(ctx, `
		INSERT INTO notifications (id, user_id, title, message, type, is_read, is_popup,
			related_id, related_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		n.ID, n.UserID, n.Title, n.Message, n.Type, n.IsRead, n.IsPopup,
		n.RelatedID, n.RelatedType, n.CreatedAt)
}

func (r *PostgresRepository) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	found, err := r.get(ctx, &n, `SELECT * FROM notifications WHERE id = $1`, id)
	if err != nil || !found {
		return nil, err
	}
	return &n, nil
}

func (r *PostgresRepository) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := `SELECT * FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT $2`

	var out []models.Notification
	if err := sqlx.SelectContext(ctx, r.ext, &out, query, userID, limit); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var n int
	_, err := r.get(ctx, &n, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID)
	return n, err
}

// TakePopupNotifications returns unread popup notifications and clears their popup flag
func (r *PostgresRepository) TakePopupNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	var out []models.Notification
	err := sqlx.SelectContext(ctx, r.ext, &out, `
		UPDATE notifications SET is_popup = FALSE
		WHERE user_id = $1 AND is_popup = TRUE AND is_read = FALSE
		RETURNING *`, userID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) MarkNotificationRead(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
}

func (r *PostgresRepository) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	return r.exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`, userID)
}

// Audit repository methods
func (r *PostgresRepository) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	newID(&entry.ID)
	entry.CreatedAt = time.Now().UTC()
	return r.exec(ctx, `
		INSERT INTO audit_logs (id, user_id, action, entity_type, entity_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.UserID, entry.Action, entry.EntityType, entry.EntityID, entry.Details, entry.CreatedAt)
}

func (r *PostgresRepository) ListAuditLogs(ctx context.Context, limit, offset int) ([]models.AuditLog, error) {
	var out []models.AuditLog
	err := sqlx.SelectContext(ctx, r.ext, &out,
		`SELECT * FROM audit_logs ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Expense repository methods
func (r *PostgresRepository) UpsertExpenseCategory(ctx context.Context, name string) error {
	return r.exec(ctx, `
		INSERT INTO expense_categories (id, name, is_active) VALUES ($1, $2, TRUE)
		ON CONFLICT (name) DO NOTHING`,
		uuid.New().String(), name)
}

func (r *PostgresRepository) CreateExpenseCategory(ctx context.Context, c *models.ExpenseCategory) error {
	newID(&c.ID)
	return r.exec(ctx, `
		INSERT INTO expense_categories (id, name, is_active, budget_cents) VALUES ($1, $2, $3, $4)`,
		c.ID, c.Name, c.IsActive, c.BudgetCents)
}

func (r *PostgresRepository) UpdateExpenseCategory(ctx context.Context, c *models.ExpenseCategory) error {
	return r.exec(ctx, `UPDATE expense_categories SET is_active = $2, budget_cents = $3 WHERE id = $1`,
		c.ID, c.IsActive, c.BudgetCents)
}

func (r *PostgresRepository) ListExpenseCategories(ctx context.Context, activeOnly bool) ([]models.ExpenseCategory, error) {
	query := `SELECT * FROM expense_categories`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY name`

	var out []models.ExpenseCategory
	if err := sqlx.SelectContext(ctx, r.ext, &out, query); err != nil {
		return nil, err
	}
	return out, nil
}

// SumExpensesByCategory totals claims dated in [from, to] whose status is one of statuses
func (r *PostgresRepository) SumExpensesByCategory(ctx context.Context, from, to models.Date, statuses []string) (map[string]int64, error) {
	var rows []struct {
		CategoryID string `db:"category_id"`
		Total      int64  `db:"total"`
	}
	err := sqlx.SelectContext(ctx, r.ext, &rows, `
		SELECT category_id, COALESCE(SUM(amount_cents), 0) AS total
		FROM expenses
		WHERE expense_date BETWEEN $1 AND $2 AND status = ANY($3)
		GROUP BY category_id`,
		from, to, pq.Array(statuses))
	if err != nil {
		return nil, err
	}

	totals := make(map[string]int64, len(rows))
	for _, row := range rows {
		totals[row.CategoryID] = row.Total
	}
	return totals, nil
}

func (r *PostgresRepository) GetExpenseCategory(ctx context.Context, id string) (*models.ExpenseCategory, error) {
	var c models.ExpenseCategory
	found, err := r.get(ctx, &c, `SELECT * FROM expense_categories WHERE id = $1`, id)
	if err != nil || !found {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresRepository) CreateExpense(ctx context.Context, e *models.Expense) error {
	newID(&e.ID)
	e.CreatedAt = time.Now().UTC()
	return r.exec(ctx, `
		INSERT INTO expenses (id, user_id, category_id, amount_cents, description, vendor,
			expense_date, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.UserID, e.CategoryID, e.AmountCents, e.Description, e.Vendor,
		e.ExpenseDate, e.Status, e.CreatedAt)
}

// GetExpenseForUpdate locks the expense row inside a transaction; outside one it is a plain read
func (r *PostgresRepository) GetExpenseForUpdate(ctx context.Context, id string) (*models.Expense, error) {
	query := `SELECT * FROM expenses WHERE id = $1`
	if r.inTx {
		query += ` FOR UPDATE`
	}

	var e models.Expense
	found, err := r.get(ctx, &e, query, id)
	if err != nil || !found {
		return nil, err
	}
	return &e, nil
}

func (r *PostgresRepository) UpdateExpense(ctx context.Context, e *models.Expense) error {
	return r.exec(ctx, `
		UPDATE expenses SET status = $2, approved_by = $3, approved_at = $4,
			rejection_reason = $5, reimbursed_at = $6
		WHERE id = $1`,
		e.ID, e.Status, e.ApprovedBy, e.ApprovedAt, e.RejectionReason, e.ReimbursedAt)
}

// ListExpenses returns expenses for userID, or all of them when it is empty
func (r *PostgresRepository) ListExpenses(ctx context.Context, userID string) ([]models.Expense, error) {
	query := `SELECT * FROM expenses`
	var args []interface{}
	if userID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY expense_date DESC, created_at DESC`

	var out []models.Expense
	if err := sqlx.SelectContext(ctx, r.ext, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}
