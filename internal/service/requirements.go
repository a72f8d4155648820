package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rongwang/staff-scheduler/internal/models"
	"github.com/rongwang/staff-scheduler/internal/repository"
)

// RequirementAggregator compares scheduled work in a month against the
// configured MonthlyRequirement. It never writes.
type RequirementAggregator struct{}

// Summarize loads a user's shifts and the month's requirement and evaluates them
func (RequirementAggregator) Summarize(ctx context.Context, repo repository.Repository, userID string, year, month int) (*models.RequirementSummary, error) {
	from, to := monthBounds(year, month)
	shifts, err := repo.ListSchedules(ctx, repository.ScheduleFilter{UserID: userID, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("error listing schedules: %w", err)
	}
	req, err := repo.GetRequirement(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("error getting requirement: %w", err)
	}

	summary := evaluateRequirement(userID, year, month, shifts, req)
	return &summary, nil
}

// evaluateRequirement is met only when every configured dimension is
// satisfied. A missing row, or one with neither dimension set, is not configured.
func evaluateRequirement(userID string, year, month int, shifts []models.Schedule, req *models.MonthlyRequirement) models.RequirementSummary {
	summary := models.RequirementSummary{UserID: userID, Year: year, Month: month}

	days := map[string]bool{}
	for i := range shifts {
		summary.ScheduledHours += shifts[i].Hours()
		days[shifts[i].Date.String()] = true
	}
	summary.ScheduledDays = len(days)

	if req == nil || (req.RequiredHours == nil && req.RequiredDays == nil) {
		summary.Status = models.RequirementNotConfigured
		return summary
	}

	summary.RequiredHours = req.RequiredHours
	summary.RequiredDays = req.RequiredDays

	met := true
	if req.RequiredHours != nil && summary.ScheduledHours+balanceEpsilon < *req.RequiredHours {
		met = false
	}
	if req.RequiredDays != nil && summary.ScheduledDays < *req.RequiredDays {
		met = false
	}

	summary.Status = models.RequirementUnmet
	if met {
		summary.Status = models.RequirementMet
	}
	return summary
}

func validateMonth(year, month int) error {
	if year < 2000 || year > 2100 {
		return validationError("year %d out of range", year)
	}
	if month < 1 || month > 12 {
		return validationError("month must be between 1 and 12")
	}
	return nil
}

func (s *DefaultService) SetRequirement(ctx context.Context, actorID string, req models.SetRequirementRequest) (*models.MonthlyRequirement, error) {
	a, err := s.authorize(ctx, actorID, models.PermManageRequirements)
	if err != nil {
		return nil, err
	}
	if err := validateMonth(req.Year, req.Month); err != nil {
		return nil, err
	}
	if req.RequiredHours != nil && *req.RequiredHours < 0 {
		return nil, validationError("required hours must not be negative")
	}
	if req.RequiredDays != nil && *req.RequiredDays < 0 {
		return nil, validationError("required days must not be negative")
	}

	creator := a.id()
	mr := &models.MonthlyRequirement{
		Year:          req.Year,
		Month:         req.Month,
		RequiredHours: req.RequiredHours,
		RequiredDays:  req.RequiredDays,
		Notes:         strings.TrimSpace(req.Notes),
		CreatedBy:     &creator,
	}
	if err := s.repo.UpsertRequirement(ctx, mr); err != nil {
		return nil, wrapRepoError("saving requirement", err)
	}

	details := map[string]interface{}{"year": mr.Year, "month": mr.Month}
	if mr.RequiredHours != nil {
		details["requiredHours"] = *mr.RequiredHours
	}
	if mr.RequiredDays != nil {
		details["requiredDays"] = *mr.RequiredDays
	}
	s.emit(ctx, Event{
		ActorID:    a.id(),
		Action:     "requirement.set",
		EntityType: "monthly_requirement",
		EntityID:   mr.ID,
		Details:    details,
	})
	return mr, nil
}

func (s *DefaultService) ListRequirements(ctx context.Context, actorID string, year int) ([]models.MonthlyRequirement, error) {
	if _, err := s.authorize(ctx, actorID, models.PermManageRequirements); err != nil {
		return nil, err
	}
	if year == 0 {
		year = s.now().Year()
	}

	out, err := s.repo.ListRequirements(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("error listing requirements: %w", err)
	}
	return out, nil
}

// Summarize reports whether a user met the month's requirement. Looking at
// someone else needs management.reports.
func (s *DefaultService) Summarize(ctx context.Context, actorID, userID string, year, month int) (*models.RequirementSummary, error) {
	a, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	target, err := resolveViewTarget(a, userID, models.PermScheduleViewOwn, models.PermManageReports, false)
	if err != nil {
		return nil, err
	}
	if err := validateMonth(year, month); err != nil {
		return nil, err
	}

	return RequirementAggregator{}.Summarize(ctx, s.repo, target, year, month)
}

// AttendanceReport summarizes every active user for a month
func (s *DefaultService) AttendanceReport(ctx context.Context, actorID string, year, month int) (*models.AttendanceReport, error) {
	if _, err := s.authorize(ctx, actorID, models.PermManageReports); err != nil {
		return nil, err
	}
	if err := validateMonth(year, month); err != nil {
		return nil, err
	}

	from, to := monthBounds(year, month)

	users, err := s.repo.ListUsers(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	req, err := s.repo.GetRequirement(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("error getting requirement: %w", err)
	}
	shifts, err := s.repo.ListSchedules(ctx, repository.ScheduleFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("error listing schedules: %w", err)
	}
	leave, err := s.repo.ListApprovedLeaveOverlapping(ctx, "", from, to)
	if err != nil {
		return nil, fmt.Errorf("error listing leave: %w", err)
	}

	shiftsByUser := map[string][]models.Schedule{}
	for _, sh := range shifts {
		shiftsByUser[sh.UserID] = append(shiftsByUser[sh.UserID], sh)
	}
	leaveDays := map[string]int{}
	for _, lr := range leave {
		if lr.Hours > 0 {
			continue
		}
		start, end := maxDate(lr.StartDate, from), lr.EndDate
		if end.After(to) {
			end = to
		}
		leaveDays[lr.UserID] += countWeekdays(start, end)
	}

	report := &models.AttendanceReport{Year: year, Month: month, Rows: make([]models.AttendanceRow, 0, len(users))}
	for _, u := range users {
		summary := evaluateRequirement(u.ID, year, month, shiftsByUser[u.ID], req)
		report.Rows = append(report.Rows, models.AttendanceRow{
			UserID:         u.ID,
			Name:           u.FullName(),
			Department:     u.Department,
			ScheduledDays:  summary.ScheduledDays,
			ScheduledHours: summary.ScheduledHours,
			LeaveDays:      leaveDays[u.ID],
			Status:         summary.Status,
		})
	}
	return report, nil
}
