package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rongwang/staff-scheduler/internal/models"
)

// Schedule repository methods
func (r *PostgresRepository) CreateSchedule(ctx context.Context, s *models.Schedule) error {
	newID(&s.ID)
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	return r.exec(ctx, `
		INSERT INTO schedules (id, user_id, date, start_time, end_time, notes, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.UserID, s.Date, s.StartTime, s.EndTime, s.Notes, s.CreatedBy, s.CreatedAt, s.UpdatedAt)
}

func (r *PostgresRepository) GetSchedule(ctx context.Context, id string) (*models.Schedule, error) {
	var s models.Schedule
	found, err := r.get(ctx, &s, `SELECT * FROM schedules WHERE id = $1`, id)
	if err != nil || !found {
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) UpdateSchedule(ctx context.Context, s *models.Schedule) error {
	s.UpdatedAt = time.Now().UTC()
	return r.exec(ctx, `
		UPDATE schedules SET user_id = $2, date = $3, start_time = $4, end_time = $5, notes = $6, updated_at = $7
		WHERE id = $1`,
		s.ID, s.UserID, s.Date, s.StartTime, s.EndTime, s.Notes, s.UpdatedAt)
}

func (r *PostgresRepository) DeleteSchedule(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
}

func (r *PostgresRepository) ListSchedules(ctx context.Context, filter ScheduleFilter) ([]models.Schedule, error) {
	query := `SELECT * FROM schedules WHERE 1 = 1`
	var args []interface{}

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		query += fmt.Sprintf(` AND user_id = $%d`, len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(` AND date >= $%d`, len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(` AND date <= $%d`, len(args))
	}
	query += ` ORDER BY date, start_time`

	var out []models.Schedule
	if err := sqlx.SelectContext(ctx, r.ext, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// Unavailability repository methods
func (r *PostgresRepository) CreateUnavailability(ctx context.Context, u *models.Unavailability) error {
	newID(&u.ID)
	u.CreatedAt = time.Now().UTC()
	return r.exec(ctx, `
		INSERT INTO unavailability (id, user_id, date, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.UserID, u.Date, u.Reason, u.CreatedAt)
}

func (r *PostgresRepository) GetUnavailability(ctx context.Context, id string) (*models.Unavailability, error) {
	var u models.Unavailability
	found, err := r.get(ctx, &u, `SELECT * FROM unavailability WHERE id = $1`, id)
	if err != nil || !found {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresRepository) GetUnavailabilityOn(ctx context.Context, userID string, date models.Date) (*models.Unavailability, error) {
	var u models.Unavailability
	found, err := r.get(ctx, &u, `SELECT * FROM unavailability WHERE user_id = $1 AND date = $2`, userID, date)
	if err != nil || !found {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresRepository) ListUnavailability(ctx context.Context, userID string, from, to models.Date) ([]models.Unavailability, error) {
	query := `SELECT * FROM unavailability WHERE date >= $1 AND date <= $2`
	args := []interface{}{from, to}
	if userID != "" {
		query += ` AND user_id = $3`
		args = append(args, userID)
	}
	query += ` ORDER BY date`

	var out []models.Unavailability
	if err := sqlx.SelectContext(ctx, r.ext, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) DeleteUnavailability(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM unavailability WHERE id = $1`, id)
}

// Restricted day repository methods
func (r *PostgresRepository) CreateRestrictedDay(ctx context.Context, d *models.RestrictedDay) error {
	newID(&d.ID)
	d.CreatedAt = time.Now().UTC()
	return r.exec(ctx, `
		INSERT INTO restricted_days (id, date, reason, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		d.ID, d.Date, d.Reason, d.CreatedBy, d.CreatedAt)
}

func (r *PostgresRepository) GetRestrictedDay(ctx context.Context, id string) (*models.RestrictedDay, error) {
	var d models.RestrictedDay
	found, err := r.get(ctx, &d, `SELECT * FROM restricted_days WHERE id = $1`, id)
	if err != nil || !found {
		return nil, err
	}
	return &d, nil
}

func (r *PostgresRepository) GetRestrictedDayByDate(ctx context.Context, date models.Date) (*models.RestrictedDay, error) {
	var d models.RestrictedDay
	found, err := r.get(ctx, &d, `SELECT * FROM restricted_days WHERE date = $1`, date)
	if err != nil || !found {
		return nil, err
	}
	return &d, nil
}

func (r *PostgresRepository) ListRestrictedDays(ctx context.Context, from, to models.Date) ([]models.RestrictedDay, error) {
	var out []models.RestrictedDay
	err := sqlx.SelectContext(ctx, r.ext, &out,
		`SELECT * FROM restricted_days WHERE date >= $1 AND date <= $2 ORDER BY date`, from, to)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) DeleteRestrictedDay(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM restricted_days WHERE id = $1`, id)
}

// Monthly requirement repository methods
func (r *PostgresRepository) UpsertRequirement(ctx context.Context, req *models.MonthlyRequirement) error {
	newID(&req.ID)
	now := time.Now().UTC()
	req.UpdatedAt = now
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}

	query := `
		INSERT INTO monthly_requirements (id, year, month, required_hours, required_days, notes,
			created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (year, month) DO UPDATE SET
			required_hours = EXCLUDED.required_hours,
			required_days = EXCLUDED.required_days,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`
	row := r.ext.QueryRowxContext(ctx, query,
		req.ID, req.Year, req.Month, req.RequiredHours, req.RequiredDays, req.Notes,
		req.CreatedBy, req.CreatedAt, req.UpdatedAt)
	return mapError(row.Scan(&req.ID, &req.CreatedAt))
}

func (r *PostgresRepository) GetRequirement(ctx context.Context, year, month int) (*models.MonthlyRequirement, error) {
	var req models.MonthlyRequirement
	found, err := r.get(ctx, &req, `SELECT * FROM monthly_requirements WHERE year = $1 AND month = $2`, year, month)
	if err != nil || !found {
		return nil, err
	}
	return &req, nil
}

func (r *PostgresRepository) ListRequirements(ctx context.Context, year int) ([]models.MonthlyRequirement, error) {
	var out []models.MonthlyRequirement
	err := sqlx.SelectContext(ctx, r.ext, &out,
		`SELECT * FROM monthly_requirements WHERE year = $1 ORDER BY month`, year)
	if err != nil {
		return nil, err
	}
	return out, nil
}
