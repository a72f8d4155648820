package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rongwang/staff-scheduler/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	nineAM  = models.NewClockTime(9, 0)
	fivePM  = models.NewClockTime(17, 0)
	oneShot = models.NewClockTime(13, 30)
)

func conflictKind(t *testing.T, err error) ConflictKind {
	t.Helper()
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict), "expected a ConflictError, got %v", err)
	return conflict.Kind
}

func TestConflictCheckerApprovedLeave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lr := f.requestLeave(t, f.staffID, f.annualID, date(2025, time.March, 10), date(2025, time.March, 14))
	_, err := f.svc.ApproveLeave(ctx, f.managerID, lr.ID, "")
	require.NoError(t, err)

	var checker ConflictChecker
	for d := date(2025, time.March, 10); !d.After(date(2025, time.March, 14)); d = d.AddDays(1) {
		err := checker.Check(ctx, f.repo, f.staffID, d, nineAM, fivePM, false)
		assert.Equal(t, ConflictApprovedLeave, conflictKind(t, err), d.String())
	}

	assert.NoError(t, checker.Check(ctx, f.repo, f.staffID, date(2025, time.March, 7), nineAM, fivePM, false))
	assert.NoError(t, checker.Check(ctx, f.repo, f.staffID, date(2025, time.March, 17), nineAM, fivePM, false))
	// other users are unaffected
	assert.NoError(t, checker.Check(ctx, f.repo, f.otherID, date(2025, time.March, 12), nineAM, fivePM, false))
}

func TestConflictCheckerIgnoresPendingLeave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.requestLeave(t, f.staffID, f.annualID, date(2025, time.March, 10), date(2025, time.March, 14))

	var checker ConflictChecker
	assert.NoError(t, checker.Check(ctx, f.repo, f.staffID, date(2025, time.March, 11), nineAM, fivePM, false))
}

func TestConflictCheckerUnavailabilityAndRestricted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddUnavailability(ctx, f.staffID, models.UnavailabilityRequest{Date: date(2025, time.March, 5), Reason: "exam"})
	require.NoError(t, err)
	_, err = f.svc.AddRestrictedDay(ctx, f.managerID, models.RestrictedDayRequest{Date: date(2025, time.March, 6), Reason: "Audit"})
	require.NoError(t, err)

	var checker ConflictChecker
	err = checker.Check(ctx, f.repo, f.staffID, date(2025, time.March, 5), nineAM, fivePM, false)
	assert.Equal(t, ConflictUnavailability, conflictKind(t, err))
	assert.ErrorIs(t, err, ErrConflict)

	err = checker.Check(ctx, f.repo, f.staffID, date(2025, time.March, 6), nineAM, fivePM, false)
	assert.Equal(t, ConflictRestrictedDayNotCleared, conflictKind(t, err))

	assert.NoError(t, checker.Check(ctx, f.repo, f.staffID, date(2025, time.March, 6), nineAM, fivePM, true))
}

func TestConflictCheckerRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var checker ConflictChecker
	assert.ErrorIs(t, checker.Check(ctx, f.repo, f.staffID, models.Date{}, nineAM, fivePM, false), ErrValidation)
	assert.ErrorIs(t, checker.Check(ctx, f.repo, f.staffID, date(2025, time.March, 4), fivePM, nineAM, false), ErrValidation)
	assert.ErrorIs(t, checker.Check(ctx, f.repo, f.staffID, date(2025, time.March, 4), nineAM, nineAM, false), ErrValidation)
}

func TestCreateSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	shift, err := f.svc.CreateSchedule(ctx, f.managerID, models.ScheduleRequest{
		UserID:    f.staffID,
		Date:      date(2025, time.March, 4),
		StartTime: nineAM,
		EndTime:   fivePM,
		Notes:     "front desk",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, shift.ID)
	assert.Equal(t, 8.0, shift.Hours())

	ev := f.events.last()
	assert.Equal(t, "schedule.created", ev.Action)
	require.NotNil(t, ev.Notify)
	assert.Equal(t, []string{f.staffID}, ev.Notify.UserIDs)

	// staff cannot create shifts
	_, err = f.svc.CreateSchedule(ctx, f.staffID, models.ScheduleRequest{
		UserID: f.staffID, Date: date(2025, time.March, 5), StartTime: nineAM, EndTime: fivePM,
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.svc.CreateSchedule(ctx, f.managerID, models.ScheduleRequest{
		UserID: "missing", Date: date(2025, time.March, 5), StartTime: nineAM, EndTime: fivePM,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

// the schema has no unique (user, date, start) constraint
func TestCreateScheduleSameSlotTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := models.ScheduleRequest{UserID: f.staffID, Date: date(2025, time.March, 4), StartTime: nineAM, EndTime: fivePM}
	first, err := f.svc.CreateSchedule(ctx, f.managerID, req)
	require.NoError(t, err)
	second, err := f.svc.CreateSchedule(ctx, f.managerID, req)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	shifts, err := f.svc.ListSchedules(ctx, f.managerID, f.staffID, req.Date, req.Date)
	require.NoError(t, err)
	assert.Len(t, shifts, 2)
}

func TestCreateScheduleOnRestrictedDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddRestrictedDay(ctx, f.adminID, models.RestrictedDayRequest{Date: date(2025, time.March, 6), Reason: "Audit"})
	require.NoError(t, err)

	req := models.ScheduleRequest{UserID: f.staffID, Date: date(2025, time.March, 6), StartTime: nineAM, EndTime: fivePM}

	_, err = f.svc.CreateSchedule(ctx, f.managerID, req)
	assert.Equal(t, ConflictRestrictedDayNotCleared, conflictKind(t, err))

	// managers lack the override capability
	req.OverrideRestricted = true
	_, err = f.svc.CreateSchedule(ctx, f.managerID, req)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	shift, err := f.svc.CreateSchedule(ctx, f.adminID, req)
	require.NoError(t, err)
	assert.Equal(t, true, f.events.last().Details["restrictedOverride"])
	assert.NotEmpty(t, shift.ID)
}

func TestCreateScheduleDuringApprovedLeave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lr := f.requestLeave(t, f.staffID, f.annualID, date(2025, time.March, 10), date(2025, time.March, 10))
	_, err := f.svc.ApproveLeave(ctx, f.managerID, lr.ID, "")
	require.NoError(t, err)

	_, err = f.svc.CreateSchedule(ctx, f.managerID, models.ScheduleRequest{
		UserID: f.staffID, Date: date(2025, time.March, 10), StartTime: nineAM, EndTime: fivePM,
	})
	assert.Equal(t, ConflictApprovedLeave, conflictKind(t, err))

	shifts, err := f.svc.ListSchedules(ctx, f.managerID, f.staffID, date(2025, time.March, 1), date(2025, time.March, 31))
	require.NoError(t, err)
	assert.Empty(t, shifts)
}

func TestUpdateAndDeleteSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	shift, err := f.svc.CreateSchedule(ctx, f.managerID, models.ScheduleRequest{
		UserID: f.staffID, Date: date(2025, time.March, 4), StartTime: nineAM, EndTime: fivePM,
	})
	require.NoError(t, err)

	updated, err := f.svc.UpdateSchedule(ctx, f.managerID, shift.ID, models.ScheduleRequest{
		UserID: f.staffID, Date: date(2025, time.March, 4), StartTime: nineAM, EndTime: oneShot,
	})
	require.NoError(t, err)
	assert.Equal(t, 4.5, updated.Hours())

	// the manager role cannot delete
	assert.ErrorIs(t, f.svc.DeleteSchedule(ctx, f.managerID, shift.ID), ErrPermissionDenied)
	require.NoError(t, f.svc.DeleteSchedule(ctx, f.adminID, shift.ID))
	assert.ErrorIs(t, f.svc.DeleteSchedule(ctx, f.adminID, shift.ID), ErrNotFound)
}

func TestBulkAssign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Wednesday already has a shift, Thursday is unavailable, Friday is restricted
	_, err := f.svc.CreateSchedule(ctx, f.managerID, models.ScheduleRequest{
		UserID: f.staffID, Date: date(2025, time.March, 5), StartTime: nineAM, EndTime: fivePM,
	})
	require.NoError(t, err)
	_, err = f.svc.AddUnavailability(ctx, f.staffID, models.UnavailabilityRequest{Date: date(2025, time.March, 6)})
	require.NoError(t, err)
	_, err = f.svc.AddRestrictedDay(ctx, f.managerID, models.RestrictedDayRequest{Date: date(2025, time.March, 7), Reason: "Stocktake"})
	require.NoError(t, err)

	resp, err := f.svc.BulkAssign(ctx, f.managerID, models.BulkAssignRequest{
		UserID:    f.staffID,
		StartDate: date(2025, time.March, 3),
		EndDate:   date(2025, time.March, 9),
		StartTime: nineAM,
		EndTime:   fivePM,
	})
	require.NoError(t, err)

	require.Len(t, resp.Created, 2)
	assert.Equal(t, date(2025, time.March, 3), resp.Created[0].Date)
	assert.Equal(t, date(2025, time.March, 4), resp.Created[1].Date)

	reasons := map[string]string{}
	for _, s := range resp.Skipped {
		reasons[s.Date.String()] = s.Reason
	}
	assert.Equal(t, map[string]string{
		"2025-03-05": "already_scheduled",
		"2025-03-06": string(ConflictUnavailability),
		"2025-03-07": string(ConflictRestrictedDayNotCleared),
	}, reasons)

	assert.Equal(t, "schedule.bulk_created", f.events.last().Action)
}

func TestBulkAssignWeekdaysAndLimits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.BulkAssign(ctx, f.managerID, models.BulkAssignRequest{
		UserID:    f.staffID,
		StartDate: date(2025, time.March, 1),
		EndDate:   date(2025, time.March, 31),
		Weekdays:  []int{int(time.Saturday)},
		StartTime: nineAM,
		EndTime:   fivePM,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Created, 5)
	for _, s := range resp.Created {
		assert.Equal(t, time.Saturday, s.Date.Weekday())
	}

	_, err = f.svc.BulkAssign(ctx, f.managerID, models.BulkAssignRequest{
		UserID:    f.staffID,
		StartDate: date(2025, time.January, 1),
		EndDate:   date(2026, time.March, 1),
		StartTime: nineAM,
		EndTime:   fivePM,
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.BulkAssign(ctx, f.managerID, models.BulkAssignRequest{
		UserID:    f.staffID,
		StartDate: date(2025, time.April, 1),
		EndDate:   date(2025, time.April, 2),
		Weekdays:  []int{7},
		StartTime: nineAM,
		EndTime:   fivePM,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestListSchedulesVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, userID := range []string{f.staffID, f.otherID} {
		_, err := f.svc.CreateSchedule(ctx, f.managerID, models.ScheduleRequest{
			UserID: userID, Date: date(2025, time.March, 4), StartTime: nineAM, EndTime: fivePM,
		})
		require.NoError(t, err)
	}

	own, err := f.svc.ListSchedules(ctx, f.staffID, "", models.Date{}, models.Date{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, f.staffID, own[0].UserID)

	_, err = f.svc.ListSchedules(ctx, f.staffID, f.otherID, models.Date{}, models.Date{})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	all, err := f.svc.ListSchedules(ctx, f.managerID, "", models.Date{}, models.Date{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMonthCalendar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateSchedule(ctx, f.managerID, models.ScheduleRequest{
		UserID: f.staffID, Date: date(2025, time.March, 4), StartTime: nineAM, EndTime: fivePM,
	})
	require.NoError(t, err)
	lr := f.requestLeave(t, f.staffID, f.annualID, date(2025, time.March, 10), date(2025, time.March, 11))
	_, err = f.svc.ApproveLeave(ctx, f.managerID, lr.ID, "")
	require.NoError(t, err)
	_, err = f.svc.AddUnavailability(ctx, f.staffID, models.UnavailabilityRequest{Date: date(2025, time.March, 20)})
	require.NoError(t, err)
	_, err = f.svc.AddRestrictedDay(ctx, f.managerID, models.RestrictedDayRequest{Date: date(2025, time.March, 21), Reason: "Audit"})
	require.NoError(t, err)

	cal, err := f.svc.MonthCalendar(ctx, f.staffID, "", 2025, 3)
	require.NoError(t, err)
	require.Len(t, cal.Days, 31)
	assert.Len(t, cal.Days[3].Shifts, 1)
	assert.Len(t, cal.Days[9].Leave, 1)
	assert.Len(t, cal.Days[10].Leave, 1)
	assert.Empty(t, cal.Days[11].Leave)
	assert.True(t, cal.Days[19].Unavailable)
	assert.True(t, cal.Days[20].Restricted)
	assert.Equal(t, "Audit", cal.Days[20].RestrictedReason)

	_, err = f.svc.MonthCalendar(ctx, f.staffID, "", 2025, 13)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUnavailabilityOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.AddUnavailability(ctx, f.staffID, models.UnavailabilityRequest{Date: date(2025, time.March, 5)})
	require.NoError(t, err)

	_, err = f.svc.AddUnavailability(ctx, f.staffID, models.UnavailabilityRequest{Date: date(2025, time.March, 5)})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	assert.ErrorIs(t, f.svc.DeleteUnavailability(ctx, f.otherID, u.ID), ErrPermissionDenied)
	require.NoError(t, f.svc.DeleteUnavailability(ctx, f.staffID, u.ID))
}

func TestRestrictedDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddRestrictedDay(ctx, f.staffID, models.RestrictedDayRequest{Date: date(2025, time.March, 6), Reason: "x"})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.svc.AddRestrictedDay(ctx, f.managerID, models.RestrictedDayRequest{Date: date(2025, time.March, 6)})
	assert.ErrorIs(t, err, ErrValidation)

	day, err := f.svc.AddRestrictedDay(ctx, f.managerID, models.RestrictedDayRequest{Date: date(2025, time.March, 6), Reason: "Audit"})
	require.NoError(t, err)

	days, err := f.svc.ListRestrictedDays(ctx, f.staffID, 0)
	require.NoError(t, err)
	assert.Len(t, days, 1)

	require.NoError(t, f.svc.DeleteRestrictedDay(ctx, f.managerID, day.ID))
	days, err = f.svc.ListRestrictedDays(ctx, f.staffID, 2025)
	require.NoError(t, err)
	assert.Empty(t, days)
}
