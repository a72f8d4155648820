package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rongwang/staff-scheduler/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountWeekdays(t *testing.T) {
	tests := []struct {
		name       string
		start, end models.Date
		want       int
	}{
		{"single weekday", date(2025, time.March, 3), date(2025, time.March, 3), 1},
		{"full week", date(2025, time.March, 3), date(2025, time.March, 9), 5},
		{"weekend only", date(2025, time.March, 8), date(2025, time.March, 9), 0},
		{"two weeks", date(2025, time.March, 3), date(2025, time.March, 14), 10},
		{"end before start", date(2025, time.March, 5), date(2025, time.March, 3), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, countWeekdays(tt.start, tt.end))
		})
	}
}

func TestRequestLeave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.RequestLeave(ctx, f.staffID, models.CreateLeaveRequest{
		LeaveTypeID: f.annualID,
		StartDate:   date(2025, time.March, 10),
		EndDate:     date(2025, time.March, 16),
		Reason:      " holiday ",
	})
	require.NoError(t, err)
	assert.Equal(t, models.LeaveStatusPending, resp.Request.Status)
	assert.Equal(t, 5.0, resp.Request.Days)
	assert.Equal(t, "holiday", resp.Request.Reason)
	assert.False(t, resp.RestrictedDay)

	// submitting never touches the allocation
	assert.Equal(t, 0.0, f.repo.allocation(f.staffID, f.annualID, 2025).UsedDays)
	assert.Contains(t, f.events.actions(), "leave.requested")
}

func TestRequestLeaveValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  models.CreateLeaveRequest
		want error
	}{
		{"missing start", models.CreateLeaveRequest{LeaveTypeID: f.annualID}, ErrValidation},
		{"end before start", models.CreateLeaveRequest{LeaveTypeID: f.annualID, StartDate: date(2025, time.March, 10), EndDate: date(2025, time.March, 7)}, ErrValidation},
		{"spans years", models.CreateLeaveRequest{LeaveTypeID: f.annualID, StartDate: date(2025, time.December, 29), EndDate: date(2026, time.January, 2)}, ErrValidation},
		{"weekend only", models.CreateLeaveRequest{LeaveTypeID: f.annualID, StartDate: date(2025, time.March, 8), EndDate: date(2025, time.March, 9)}, ErrValidation},
		{"hourly over several days", models.CreateLeaveRequest{LeaveTypeID: f.annualID, StartDate: date(2025, time.March, 10), EndDate: date(2025, time.March, 11), Hours: 4}, ErrValidation},
		{"more hours than a day", models.CreateLeaveRequest{LeaveTypeID: f.annualID, StartDate: date(2025, time.March, 10), Hours: 25}, ErrValidation},
		{"unknown leave type", models.CreateLeaveRequest{LeaveTypeID: "missing", StartDate: date(2025, time.March, 10)}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RequestLeave(ctx, f.staffID, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRequestLeaveNotifiesApprovers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lr := f.requestLeave(t, f.staffID, f.annualID, date(2025, time.March, 10), date(2025, time.March, 12))

	ev := f.events.last()
	assert.Equal(t, "leave.requested", ev.Action)
	require.NotNil(t, ev.Notify)
	assert.ElementsMatch(t, []string{f.adminID, f.managerID}, ev.Notify.UserIDs)
	assert.Equal(t, "New Leave Request", ev.Notify.Title)
	assert.Equal(t, "Sam Staff requested Annual Leave from 10/03/2025 to 12/03/2025", ev.Notify.Message)
	assert.Equal(t, lr.ID, ev.Notify.RelatedID)
	assert.Equal(t, "leave_request", ev.Notify.RelatedType)

	// an approver asking for leave is not told about their own request
	_, err := f.svc.RequestLeave(ctx, f.managerID, models.CreateLeaveRequest{
		LeaveTypeID: f.annualID,
		StartDate:   date(2025, time.March, 17),
	})
	require.NoError(t, err)
	require.NotNil(t, f.events.last().Notify)
	assert.Equal(t, []string{f.adminID}, f.events.last().Notify.UserIDs)
}

func TestRequestLeaveFlagsRestrictedDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddRestrictedDay(ctx, f.adminID, models.RestrictedDayRequest{Date: date(2025, time.March, 12), Reason: "Stocktake"})
	require.NoError(t, err)

	resp, err := f.svc.RequestLeave(ctx, f.staffID, models.CreateLeaveRequest{
		LeaveTypeID: f.annualID,
		StartDate:   date(2025, time.March, 10),
		EndDate:     date(2025, time.March, 14),
	})
	require.NoError(t, err)
	assert.True(t, resp.RestrictedDay)
}

func TestApproveLeaveReservesAllocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lr := f.requestLeave(t, f.staffID, f.annualID, date(2025, time.March, 10), date(2025, time.March, 14))

	approved, err := f.svc.ApproveLeave(ctx, f.managerID, lr.ID, "enjoy")
	require.NoError(t, err)
	assert.Equal(t, models.LeaveStatusApproved, approved.Status)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, f.managerID, *approved.ReviewedBy)
	assert.Equal(t, "enjoy", approved.ReviewNotes)

	alloc := f.repo.allocation(f.staffID, f.annualID, 2025)
	assert.Equal(t, 5.0, alloc.UsedDays)
	assert.LessOrEqual(t, alloc.UsedDays, alloc.AllocatedDays)

	ev := f.events.last()
	assert.Equal(t, "leave.approved", ev.Action)
	require.NotNil(t, ev.Notify)
	assert.Equal(t, []string{f.staffID}, ev.Notify.UserIDs)
	assert.Equal(t, "Leave Request Approved", ev.Notify.Title)
}

func TestApproveLeaveTwiceIsInvalidTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lr := f.requestLeave(t, f.staffID, f.annualID, date(2025, time.March, 10), date(2025, time.March, 11))
	_, err := f.svc.ApproveLeave(ctx, f.managerID, lr.ID, "")
	require.NoError(t, err)

	_, err = f.svc.ApproveLeave(ctx, f.managerID, lr.ID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 2.0, f.repo.allocation(f.staffID, f.annualID, 2025).UsedDays)

	_, err = f.svc.RejectLeave(ctx, f.managerID, lr.ID, "too late")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRejectLeaveLeavesAllocationAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lr := f.requestLeave(t, f.staffID, f.annualID, date(2025, time.March, 10), date(2025, time.March, 14))

	_, err := f.svc.RejectLeave(ctx, f.managerID, lr.ID, "  ")
	assert.ErrorIs(t, err, ErrValidation)

	rejected, err := f.svc.RejectLeave(ctx, f.managerID, lr.ID, "short staffed")
	require.NoError(t, err)
	assert.Equal(t, models.LeaveStatusRejected, rejected.Status)
	assert.Equal(t, 0.0, f.repo.allocation(f.staffID, f.annualID, 2025).UsedDays)

	ev := f.events.last()
	require.NotNil(t, ev.Notify)
	assert.Contains(t, ev.Notify.Message, "Reason: short staffed")
}

func TestApproveLeaveInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 8 working days from Monday 3 March to Wednesday 12 March
	first := f.requestLeave(t, f.staffID, f.annualID, date(2025, time.March, 3), date(2025, time.March, 12))
	require.Equal(t, 8.0, first.Days)
	_, err := f.svc.ApproveLeave(ctx, f.managerID, first.ID, "")
	require.NoError(t, err)

	second := f.requestLeave(t, f.staffID, f.annualID, date(2025, time.March, 17), date(2025, time.March, 19))
	_, err = f.svc.ApproveLeave(ctx, f.managerID, second.ID, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	var balanceErr *InsufficientBalanceError
	require.True(t, errors.As(err, &balanceErr))
	assert.Equal(t, "days", balanceErr.Dimension)
	assert.Equal(t, 3.0, balanceErr.Requested)
	assert.Equal(t, 2.0, balanceErr.Remaining)

	assert.Equal(t, 8.0, f.repo.allocation(f.staffID, f.annualID, 2025).UsedDays)
	stored, err := f.repo.GetLeaveRequest(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeaveStatusPending, stored.Status)
}

func TestApproveHourlyLeave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.RequestLeave(ctx, f.staffID, models.CreateLeaveRequest{
		LeaveTypeID: f.sickID,
		StartDate:   date(2025, time.March, 4),
		Hours:       3.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, resp.Request.Days)

	// no hours granted yet
	_, err = f.svc.ApproveLeave(ctx, f.managerID, resp.Request.ID, "")
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	_, err = f.svc.SetAllocation(ctx, f.adminID, models.SetAllocationRequest{
		UserID: f.staffID, LeaveTypeID: f.sickID, Year: 2025, AllocatedDays: 5, AllocatedHours: 16,
	})
	require.NoError(t, err)

	_, err = f.svc.ApproveLeave(ctx, f.managerID, resp.Request.ID, "")
	require.NoError(t, err)
	alloc := f.repo.allocation(f.staffID, f.sickID, 2025)
	assert.Equal(t, 3.5, alloc.UsedHours)
	assert.Equal(t, 0.0, alloc.UsedDays)
}

func TestApproveLeaveRollsBackOnWriteFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lr := f.requestLeave(t, f.staffID, f.annualID, date(2025, time.March, 10), date(2025, time.March, 11))

	f.repo.store.failAllocationUpdate = true
	_, err := f.svc.ApproveLeave(ctx, f.managerID, lr.ID, "")
	require.Error(t, err)
	f.repo.store.failAllocationUpdate = false

	stored, err := f.repo.GetLeaveRequest(ctx, lr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeaveStatusPending, stored.Status)
	assert.Equal(t, 0.0, f.repo.allocation(f.staffID, f.annualID, 2025).UsedDays)
	assert.NotContains(t, f.events.actions(), "leave.approved")
}

func TestApproveLeaveRequiresPermission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lr := f.requestLeave(t, f.staffID, f.annualID, date(2025, time.March, 10), date(2025, time.March, 11))

	_, err := f.svc.ApproveLeave(ctx, f.otherID, lr.ID, "")
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.svc.ApproveLeave(ctx, f.managerID, "missing", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentApprovalsSerialize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SetAllocation(ctx, f.adminID, models.SetAllocationRequest{
		UserID: f.staffID, LeaveTypeID: f.annualID, Year: 2025, AllocatedDays: 5,
	})
	require.NoError(t, err)

	a := f.requestLeave(t, f.staffID, f.annualID, date(2025, time.March, 10), date(2025, time.March, 12))
	b := f.requestLeave(t, f.staffID, f.annualID, date(2025, time.March, 17), date(2025, time.March, 19))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.svc.ApproveLeave(ctx, f.managerID, id, "")
		}(i, id)
	}
	wg.Wait()

	succeeded, insufficient := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientBalance):
			insufficient++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, insufficient)
	assert.Equal(t, 3.0, f.repo.allocation(f.staffID, f.annualID, 2025).UsedDays)
}

func TestRevokeLeaveRestoresBalanceExactly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before := f.repo.allocation(f.staffID, f.annualID, 2025)
	lr := f.requestLeave(t, f.staffID, f.annualID, date(2025, time.March, 10), date(2025, time.March, 14))
	_, err := f.svc.ApproveLeave(ctx, f.managerID, lr.ID, "")
	require.NoError(t, err)

	require.NoError(t, f.svc.RevokeLeave(ctx, f.managerID, lr.ID))

	after := f.repo.allocation(f.staffID, f.annualID, 2025)
	assert.Equal(t, before.UsedDays, after.UsedDays)
	assert.Equal(t, before.UsedHours, after.UsedHours)

	stored, err := f.repo.GetLeaveRequest(ctx, lr.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	assert.ErrorIs(t, f.svc.RevokeLeave(ctx, f.managerID, lr.ID), ErrNotFound)
}

func TestRevokeLeaveOnlyFromApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lr := f.requestLeave(t, f.staffID, f.annualID, date(2025, time.March, 10), date(2025, time.March, 11))
	assert.ErrorIs(t, f.svc.RevokeLeave(ctx, f.managerID, lr.ID), ErrInvalidTransition)
}

func TestWithdrawLeave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lr := f.requestLeave(t, f.staffID, f.annualID, date(2025, time.March, 10), date(2025, time.March, 11))

	assert.ErrorIs(t, f.svc.WithdrawLeave(ctx, f.otherID, lr.ID), ErrPermissionDenied)
	require.NoError(t, f.svc.WithdrawLeave(ctx, f.staffID, lr.ID))

	stored, err := f.repo.GetLeaveRequest(ctx, lr.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	approved := f.requestLeave(t, f.staffID, f.annualID, date(2025, time.March, 17), date(2025, time.March, 18))
	_, err = f.svc.ApproveLeave(ctx, f.managerID, approved.ID, "")
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.WithdrawLeave(ctx, f.staffID, approved.ID), ErrInvalidTransition)
}

func TestRequestLeaveOverlappingApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lr := f.requestLeave(t, f.staffID, f.annualID, date(2025, time.March, 10), date(2025, time.March, 14))
	_, err := f.svc.ApproveLeave(ctx, f.managerID, lr.ID, "")
	require.NoError(t, err)

	_, err = f.svc.RequestLeave(ctx, f.staffID, models.CreateLeaveRequest{
		LeaveTypeID: f.sickID,
		StartDate:   date(2025, time.March, 13),
		EndDate:     date(2025, time.March, 17),
	})
	assert.ErrorIs(t, err, ErrConflict)

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, ConflictApprovedLeave, conflict.Kind)
}

func TestLeaveBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lr := f.requestLeave(t, f.staffID, f.annualID, date(2025, time.March, 10), date(2025, time.March, 11))
	_, err := f.svc.ApproveLeave(ctx, f.managerID, lr.ID, "")
	require.NoError(t, err)

	balances, err := f.svc.LeaveBalance(ctx, f.staffID, "", 0)
	require.NoError(t, err)

	var annual *models.LeaveBalance
	for i := range balances {
		if balances[i].LeaveTypeID == f.annualID {
			annual = &balances[i]
		}
	}
	require.NotNil(t, annual)
	assert.Equal(t, 2025, annual.Year)
	assert.Equal(t, 8.0, annual.RemainingDays)

	_, err = f.svc.LeaveBalance(ctx, f.staffID, f.otherID, 0)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.svc.LeaveBalance(ctx, f.managerID, f.staffID, 0)
	assert.NoError(t, err)
}

func TestSetAllocationBelowUsed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lr := f.requestLeave(t, f.staffID, f.annualID, date(2025, time.March, 10), date(2025, time.March, 14))
	_, err := f.svc.ApproveLeave(ctx, f.managerID, lr.ID, "")
	require.NoError(t, err)

	_, err = f.svc.SetAllocation(ctx, f.adminID, models.SetAllocationRequest{
		UserID: f.staffID, LeaveTypeID: f.annualID, Year: 2025, AllocatedDays: 4,
	})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 10.0, f.repo.allocation(f.staffID, f.annualID, 2025).AllocatedDays)

	// managers approve leave but cannot grant it
	_, err = f.svc.SetAllocation(ctx, f.managerID, models.SetAllocationRequest{
		UserID: f.staffID, LeaveTypeID: f.annualID, Year: 2025, AllocatedDays: 20,
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestPendingLeaveCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.requestLeave(t, f.staffID, f.annualID, date(2025, time.March, 10), date(2025, time.March, 11))
	f.requestLeave(t, f.otherID, f.annualID, date(2025, time.March, 10), date(2025, time.March, 11))

	n, err := f.svc.PendingLeaveCount(ctx, f.managerID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = f.svc.ListLeaveRequests(ctx, f.managerID, "cancelled")
	assert.ErrorIs(t, err, ErrValidation)
}
