package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rongwang/staff-scheduler/internal/models"
	"github.com/rongwang/staff-scheduler/internal/repository"
)

// maxBulkAssignDays bounds a single BulkAssign call
const maxBulkAssignDays = 366

// ConflictChecker validates a proposed shift against approved leave,
// unavailability and restricted days. Same-day overlap between shifts is not checked.
type ConflictChecker struct{}

// Check returns nil when the shift may be scheduled, a *ConflictError when it
// collides with something, or a validation error for malformed input.
// restrictedCleared is decided by the caller from its override capability.
func (ConflictChecker) Check(ctx context.Context, repo repository.Repository, userID string, date models.Date, start, end models.ClockTime, restrictedCleared bool) error {
	if date.IsZero() {
		return validationError("date is required")
	}
	if end.Minutes <= start.Minutes {
		return validationError("end time %s must be after start time %s", end, start)
	}

	leave, err := repo.ListApprovedLeaveOverlapping(ctx, userID, date, date)
	if err != nil {
		return fmt.Errorf("error checking approved leave: %w", err)
	}
	if len(leave) > 0 {
		return &ConflictError{Kind: ConflictApprovedLeave, Date: date, Details: "user has approved leave"}
	}

	unavailable, err := repo.GetUnavailabilityOn(ctx, userID, date)
	if err != nil {
		return fmt.Errorf("error checking unavailability: %w", err)
	}
	if unavailable != nil {
		return &ConflictError{Kind: ConflictUnavailability, Date: date, Details: unavailable.Reason}
	}

	restricted, err := repo.GetRestrictedDayByDate(ctx, date)
	if err != nil {
		return fmt.Errorf("error checking restricted days: %w", err)
	}
	if restricted != nil && !restrictedCleared {
		return &ConflictError{Kind: ConflictRestrictedDayNotCleared, Date: date, Details: restricted.Reason}
	}

	return nil
}

// restrictedClearance resolves whether the caller may schedule on restricted days
func restrictedClearance(a *actor, requested bool) (bool, error) {
	if !requested {
		return false, nil
	}
	if err := a.require(models.PermScheduleOverrideRestrict); err != nil {
		return false, err
	}
	return true, nil
}

func (s *DefaultService) scheduleTarget(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, notFound("user")
	}
	if !user.IsActive {
		return nil, validationError("cannot schedule an inactive user")
	}
	return user, nil
}

func (s *DefaultService) CreateSchedule(ctx context.Context, actorID string, req models.ScheduleRequest) (*models.Schedule, error) {
	a, err := s.authorize(ctx, actorID, models.PermScheduleCreate)
	if err != nil {
		return nil, err
	}
	cleared, err := restrictedClearance(a, req.OverrideRestricted)
	if err != nil {
		return nil, err
	}
	if _, err := s.scheduleTarget(ctx, req.UserID); err != nil {
		return nil, err
	}

	creator := a.id()
	shift := &models.Schedule{
		UserID:    req.UserID,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Notes:     strings.TrimSpace(req.Notes),
		CreatedBy: &creator,
	}

	err = s.repo.InTx(ctx, func(repo repository.Repository) error {
		if err := s.checker.Check(ctx, repo, shift.UserID, shift.Date, shift.StartTime, shift.EndTime, cleared); err != nil {
			return err
		}
		if err := repo.CreateSchedule(ctx, shift); err != nil {
			return wrapRepoError("creating schedule", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, s.scheduleEvent(a.id(), "schedule.created", shift, cleared, &NotificationSpec{
		Title: "New Shift Assigned",
		Message: fmt.Sprintf("You have been scheduled on %s from %s to %s.",
			shift.Date.Format(displayDateLayout), shift.StartTime, shift.EndTime),
	}))
	return shift, nil
}

func (s *DefaultService) UpdateSchedule(ctx context.Context, actorID, id string, req models.ScheduleRequest) (*models.Schedule, error) {
	a, err := s.authorize(ctx, actorID, models.PermScheduleEdit)
	if err != nil {
		return nil, err
	}
	cleared, err := restrictedClearance(a, req.OverrideRestricted)
	if err != nil {
		return nil, err
	}
	if _, err := s.scheduleTarget(ctx, req.UserID); err != nil {
		return nil, err
	}

	var shift *models.Schedule
	err = s.repo.InTx(ctx, func(repo repository.Repository) error {
		existing, err := repo.GetSchedule(ctx, id)
		if err != nil {
			return fmt.Errorf("error getting schedule: %w", err)
		}
		if existing == nil {
			return notFound("schedule")
		}

		existing.UserID = req.UserID
		existing.Date = req.Date
		existing.StartTime = req.StartTime
		existing.EndTime = req.EndTime
		existing.Notes = strings.TrimSpace(req.Notes)

		if err := s.checker.Check(ctx, repo, existing.UserID, existing.Date, existing.StartTime, existing.EndTime, cleared); err != nil {
			return err
		}
		if err := repo.UpdateSchedule(ctx, existing); err != nil {
			return fmt.Errorf("error updating schedule: %w", err)
		}
		shift = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, s.scheduleEvent(a.id(), "schedule.updated", shift, cleared, &NotificationSpec{
		Title: "Shift Updated",
		Message: fmt.Sprintf("Your shift on %s is now %s to %s.",
			shift.Date.Format(displayDateLayout), shift.StartTime, shift.EndTime),
	}))
	return shift, nil
}

func (s *DefaultService) DeleteSchedule(ctx context.Context, actorID, id string) error {
	a, err := s.authorize(ctx, actorID, models.PermScheduleDelete)
	if err != nil {
		return err
	}

	shift, err := s.repo.GetSchedule(ctx, id)
	if err != nil {
		return fmt.Errorf("error getting schedule: %w", err)
	}
	if shift == nil {
		return notFound("schedule")
	}
	if err := s.repo.DeleteSchedule(ctx, id); err != nil {
		return fmt.Errorf("error deleting schedule: %w", err)
	}

	s.emit(ctx, s.scheduleEvent(a.id(), "schedule.deleted", shift, false, &NotificationSpec{
		Title:   "Shift Removed",
		Message: fmt.Sprintf("Your shift on %s has been removed.", shift.Date.Format(displayDateLayout)),
	}))
	return nil
}

// scheduleEvent builds the audit entry for a shift and notifies the assignee
// unless they made the change themselves
func (s *DefaultService) scheduleEvent(actorID, action string, shift *models.Schedule, cleared bool, notify *NotificationSpec) Event {
	ev := Event{
		ActorID:    actorID,
		Action:     action,
		EntityType: "schedule",
		EntityID:   shift.ID,
		Details: map[string]interface{}{
			"userId":    shift.UserID,
			"date":      shift.Date.String(),
			"startTime": shift.StartTime.String(),
			"endTime":   shift.EndTime.String(),
		},
	}
	if cleared {
		ev.Details["restrictedOverride"] = true
	}
	if notify != nil && shift.UserID != actorID {
		notify.UserIDs = []string{shift.UserID}
		notify.Type = "schedule"
		notify.Popup = true
		notify.RelatedID = shift.ID
		notify.RelatedType = "schedule"
		ev.Notify = notify
	}
	return ev
}

// BulkAssign creates the same shift on every matching weekday in a date
// range. Dates where the user already has a shift, or where the conflict
// checker objects, are skipped and reported.
func (s *DefaultService) BulkAssign(ctx context.Context, actorID string, req models.BulkAssignRequest) (*models.BulkAssignResponse, error) {
	a, err := s.authorize(ctx, actorID, models.PermScheduleCreate)
	if err != nil {
		return nil, err
	}
	cleared, err := restrictedClearance(a, req.OverrideRestricted)
	if err != nil {
		return nil, err
	}
	if _, err := s.scheduleTarget(ctx, req.UserID); err != nil {
		return nil, err
	}

	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return nil, validationError("start and end dates are required")
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, validationError("end date must not be before start date")
	}
	if req.EndDate.Sub(req.StartDate.Time) > maxBulkAssignDays*24*time.Hour {
		return nil, validationError("bulk assignment is limited to %d days", maxBulkAssignDays)
	}
	if req.EndTime.Minutes <= req.StartTime.Minutes {
		return nil, validationError("end time %s must be after start time %s", req.EndTime, req.StartTime)
	}

	weekdays := map[time.Weekday]bool{}
	for _, wd := range req.Weekdays {
		if wd < 0 || wd > 6 {
			return nil, validationError("weekday %d out of range", wd)
		}
		weekdays[time.Weekday(wd)] = true
	}
	if len(weekdays) == 0 {
		for wd := time.Monday; wd <= time.Friday; wd++ {
			weekdays[wd] = true
		}
	}

	creator := a.id()
	resp := &models.BulkAssignResponse{
		Status:  "success",
		Created: []models.Schedule{},
		Skipped: []models.SkippedDate{},
	}

	err = s.repo.InTx(ctx, func(repo repository.Repository) error {
		existing, err := repo.ListSchedules(ctx, repository.ScheduleFilter{UserID: req.UserID, From: req.StartDate, To: req.EndDate})
		if err != nil {
			return fmt.Errorf("error listing schedules: %w", err)
		}
		scheduled := make(map[string]bool, len(existing))
		for _, sh := range existing {
			scheduled[sh.Date.String()] = true
		}

		for d := req.StartDate; !d.After(req.EndDate); d = d.AddDays(1) {
			if !weekdays[d.Weekday()] {
				continue
			}
			if scheduled[d.String()] {
				resp.Skipped = append(resp.Skipped, models.SkippedDate{Date: d, Reason: "already_scheduled"})
				continue
			}

			err := s.checker.Check(ctx, repo, req.UserID, d, req.StartTime, req.EndTime, cleared)
			var conflict *ConflictError
			if errors.As(err, &conflict) {
				resp.Skipped = append(resp.Skipped, models.SkippedDate{Date: d, Reason: string(conflict.Kind)})
				continue
			}
			if err != nil {
				return err
			}

			shift := models.Schedule{
				UserID:    req.UserID,
				Date:      d,
				StartTime: req.StartTime,
				EndTime:   req.EndTime,
				Notes:     strings.TrimSpace(req.Notes),
				CreatedBy: &creator,
			}
			if err := repo.CreateSchedule(ctx, &shift); err != nil {
				return wrapRepoError("creating schedule", err)
			}
			resp.Created = append(resp.Created, shift)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Created) > 0 {
		ev := Event{
			ActorID:    a.id(),
			Action:     "schedule.bulk_created",
			EntityType: "user",
			EntityID:   req.UserID,
			Details: map[string]interface{}{
				"startDate": req.StartDate.String(),
				"endDate":   req.EndDate.String(),
				"created":   len(resp.Created),
				"skipped":   len(resp.Skipped),
			},
		}
		if req.UserID != a.id() {
			ev.Notify = &NotificationSpec{
				UserIDs: []string{req.UserID},
				Title:   "New Shifts Assigned",
				Message: fmt.Sprintf("You have been scheduled for %d shifts between %s and %s.",
					len(resp.Created), req.StartDate.Format(displayDateLayout), req.EndDate.Format(displayDateLayout)),
				Type:        "schedule",
				Popup:       true,
				RelatedType: "schedule",
			}
		}
		s.emit(ctx, ev)
	}
	return resp, nil
}

// resolveViewTarget decides whose data the caller may see. An empty userID
// means the caller's own unless allowAll is set and they hold viewAll.
func resolveViewTarget(a *actor, userID string, viewOwn, viewAll models.Permission, allowAll bool) (string, error) {
	switch {
	case userID == "" && allowAll && a.can(viewAll):
		return "", nil
	case userID == "" || userID == a.id():
		return a.id(), a.require(viewOwn)
	default:
		return userID, a.require(viewAll)
	}
}

func monthBounds(year, month int) (models.Date, models.Date) {
	first := models.NewDate(year, time.Month(month), 1)
	return first, models.DateOf(first.AddDate(0, 1, -1))
}

func (s *DefaultService) ListSchedules(ctx context.Context, actorID, userID string, from, to models.Date) ([]models.Schedule, error) {
	a, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	target, err := resolveViewTarget(a, userID, models.PermScheduleViewOwn, models.PermScheduleViewAll, true)
	if err != nil {
		return nil, err
	}

	if from.IsZero() && to.IsZero() {
		today := s.today()
		from, to = monthBounds(today.Year(), int(today.Month()))
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, validationError("end date must not be before start date")
	}

	shifts, err := s.repo.ListSchedules(ctx, repository.ScheduleFilter{UserID: target, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("error listing schedules: %w", err)
	}
	return shifts, nil
}

// CheckSchedule runs the conflict checker without creating anything
func (s *DefaultService) CheckSchedule(ctx context.Context, actorID string, req models.ScheduleRequest) error {
	a, err := s.authorize(ctx, actorID, models.PermScheduleCreate)
	if err != nil {
		return err
	}
	cleared, err := restrictedClearance(a, req.OverrideRestricted)
	if err != nil {
		return err
	}
	if _, err := s.scheduleTarget(ctx, req.UserID); err != nil {
		return err
	}
	return s.checker.Check(ctx, s.repo, req.UserID, req.Date, req.StartTime, req.EndTime, cleared)
}

// MonthCalendar assembles a per-day view of one user's month
func (s *DefaultService) MonthCalendar(ctx context.Context, actorID, userID string, year, month int) (*models.MonthCalendar, error) {
	a, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	target, err := resolveViewTarget(a, userID, models.PermScheduleViewOwn, models.PermScheduleViewAll, false)
	if err != nil {
		return nil, err
	}
	if month < 1 || month > 12 {
		return nil, validationError("month must be between 1 and 12")
	}

	from, to := monthBounds(year, month)

	shifts, err := s.repo.ListSchedules(ctx, repository.ScheduleFilter{UserID: target, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("error listing schedules: %w", err)
	}
	leave, err := s.repo.ListApprovedLeaveOverlapping(ctx, target, from, to)
	if err != nil {
		return nil, fmt.Errorf("error listing leave: %w", err)
	}
	unavailable, err := s.repo.ListUnavailability(ctx, target, from, to)
	if err != nil {
		return nil, fmt.Errorf("error listing unavailability: %w", err)
	}
	restricted, err := s.repo.ListRestrictedDays(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("error listing restricted days: %w", err)
	}

	cal := &models.MonthCalendar{UserID: target, Year: year, Month: month}
	index := map[string]int{}
	for d := from; !d.After(to); d = d.AddDays(1) {
		index[d.String()] = len(cal.Days)
		cal.Days = append(cal.Days, models.CalendarDay{
			Date:   d,
			Shifts: []models.Schedule{},
			Leave:  []models.LeaveRequest{},
		})
	}

	for _, sh := range shifts {
		if i, ok := index[sh.Date.String()]; ok {
			cal.Days[i].Shifts = append(cal.Days[i].Shifts, sh)
		}
	}
	for _, lr := range leave {
		for i := range cal.Days {
			if lr.Covers(cal.Days[i].Date) {
				cal.Days[i].Leave = append(cal.Days[i].Leave, lr)
			}
		}
	}
	for _, u := range unavailable {
		if i, ok := index[u.Date.String()]; ok {
			cal.Days[i].Unavailable = true
		}
	}
	for _, rd := range restricted {
		if i, ok := index[rd.Date.String()]; ok {
			cal.Days[i].Restricted = true
			cal.Days[i].RestrictedReason = rd.Reason
		}
	}
	return cal, nil
}

// Unavailability

func (s *DefaultService) AddUnavailability(ctx context.Context, actorID string, req models.UnavailabilityRequest) (*models.Unavailability, error) {
	a, err := s.authorize(ctx, actorID, models.PermScheduleViewOwn)
	if err != nil {
		return nil, err
	}
	if req.Date.IsZero() {
		return nil, validationError("date is required")
	}

	u := &models.Unavailability{
		UserID: a.id(),
		Date:   req.Date,
		Reason: strings.TrimSpace(req.Reason),
	}
	if err := s.repo.CreateUnavailability(ctx, u); err != nil {
		return nil, wrapRepoError("creating unavailability", err)
	}

	s.emit(ctx, Event{
		ActorID:    a.id(),
		Action:     "unavailability.added",
		EntityType: "unavailability",
		EntityID:   u.ID,
		Details:    map[string]interface{}{"date": u.Date.String()},
	})
	return u, nil
}

func (s *DefaultService) ListUnavailability(ctx context.Context, actorID, userID string, from, to models.Date) ([]models.Unavailability, error) {
	a, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	target, err := resolveViewTarget(a, userID, models.PermScheduleViewOwn, models.PermScheduleViewAll, true)
	if err != nil {
		return nil, err
	}

	if from.IsZero() {
		from = models.NewDate(s.now().Year(), time.January, 1)
	}
	if to.IsZero() {
		to = models.NewDate(from.Year(), time.December, 31)
	}
	if to.Before(from) {
		return nil, validationError("end date must not be before start date")
	}

	out, err := s.repo.ListUnavailability(ctx, target, from, to)
	if err != nil {
		return nil, fmt.Errorf("error listing unavailability: %w", err)
	}
	return out, nil
}

func (s *DefaultService) DeleteUnavailability(ctx context.Context, actorID, id string) error {
	a, err := s.loadActor(ctx, actorID)
	if err != nil {
		return err
	}

	u, err := s.repo.GetUnavailability(ctx, id)
	if err != nil {
		return fmt.Errorf("error getting unavailability: %w", err)
	}
	if u == nil {
		return notFound("unavailability")
	}
	if u.UserID != a.id() {
		return fmt.Errorf("%w: only the owner can remove an unavailability", ErrPermissionDenied)
	}
	if err := s.repo.DeleteUnavailability(ctx, id); err != nil {
		return fmt.Errorf("error deleting unavailability: %w", err)
	}

	s.emit(ctx, Event{
		ActorID:    a.id(),
		Action:     "unavailability.removed",
		EntityType: "unavailability",
		EntityID:   u.ID,
		Details:    map[string]interface{}{"date": u.Date.String()},
	})
	return nil
}

// Restricted days

func (s *DefaultService) AddRestrictedDay(ctx context.Context, actorID string, req models.RestrictedDayRequest) (*models.RestrictedDay, error) {
	a, err := s.authorize(ctx, actorID, models.PermManageRestricted)
	if err != nil {
		return nil, err
	}
	if req.Date.IsZero() {
		return nil, validationError("date is required")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, validationError("reason is required")
	}

	creator := a.id()
	day := &models.RestrictedDay{
		Date:      req.Date,
		Reason:    strings.TrimSpace(req.Reason),
		CreatedBy: &creator,
	}
	if err := s.repo.CreateRestrictedDay(ctx, day); err != nil {
		return nil, wrapRepoError("creating restricted day", err)
	}

	s.emit(ctx, Event{
		ActorID:    a.id(),
		Action:     "restricted_day.added",
		EntityType: "restricted_day",
		EntityID:   day.ID,
		Details:    map[string]interface{}{"date": day.Date.String(), "reason": day.Reason},
	})
	return day, nil
}

func (s *DefaultService) ListRestrictedDays(ctx context.Context, actorID string, year int) ([]models.RestrictedDay, error) {
	if _, err := s.loadActor(ctx, actorID); err != nil {
		return nil, err
	}
	if year == 0 {
		year = s.now().Year()
	}

	days, err := s.repo.ListRestrictedDays(ctx, models.NewDate(year, time.January, 1), models.NewDate(year, time.December, 31))
	if err != nil {
		return nil, fmt.Errorf("error listing restricted days: %w", err)
	}
	return days, nil
}

func (s *DefaultService) DeleteRestrictedDay(ctx context.Context, actorID, id string) error {
	a, err := s.authorize(ctx, actorID, models.PermManageRestricted)
	if err != nil {
		return err
	}

	day, err := s.repo.GetRestrictedDay(ctx, id)
	if err != nil {
		return fmt.Errorf("error getting restricted day: %w", err)
	}
	if day == nil {
		return notFound("restricted day")
	}
	if err := s.repo.DeleteRestrictedDay(ctx, id); err != nil {
		return fmt.Errorf("error deleting restricted day: %w", err)
	}

	s.emit(ctx, Event{
		ActorID:    a.id(),
		Action:     "restricted_day.removed",
		EntityType: "restricted_day",
		EntityID:   day.ID,
		Details:    map[string]interface{}{"date": day.Date.String()},
	})
	return nil
}
