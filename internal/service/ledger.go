package service

import (
	"context"
	"fmt"

	"github.com/rongwang/staff-scheduler/internal/models"
	"github.com/rongwang/staff-scheduler/internal/repository"
)

// balanceEpsilon absorbs float drift in half-day and hour arithmetic
const balanceEpsilon = 1e-9

// Ledger is the only writer of an allocation's used_days / used_hours.
// Every method works on the repository it is given, which callers bind to
// the surrounding transaction.
type Ledger struct{}

// GetOrCreate returns the allocation for (user, leave type, year), inserting
// an empty one on first use. The row is locked until the transaction ends.
func (Ledger) GetOrCreate(ctx context.Context, repo repository.Repository, userID, leaveTypeID string, year int) (*models.LeaveAllocation, error) {
	if err := repo.EnsureAllocation(ctx, userID, leaveTypeID, year); err != nil {
		return nil, fmt.Errorf("error creating allocation: %w", err)
	}

	alloc, err := repo.GetAllocationForUpdate(ctx, userID, leaveTypeID, year)
	if err != nil {
		return nil, fmt.Errorf("error locking allocation: %w", err)
	}
	if alloc == nil {
		return nil, fmt.Errorf("allocation for user %s, leave type %s, year %d missing after insert", userID, leaveTypeID, year)
	}

	return alloc, nil
}

// Reserve draws days and hours from the allocation. Both dimensions are
// checked before anything is written.
func (Ledger) Reserve(ctx context.Context, repo repository.Repository, alloc *models.LeaveAllocation, days, hours float64) error {
	if days < 0 || hours < 0 {
		return validationError("reserved quantities must not be negative")
	}

	if alloc.UsedDays+days > alloc.AllocatedDays+balanceEpsilon {
		return &InsufficientBalanceError{Dimension: "days", Requested: days, Remaining: alloc.RemainingDays()}
	}
	if alloc.UsedHours+hours > alloc.AllocatedHours+balanceEpsilon {
		return &InsufficientBalanceError{Dimension: "hours", Requested: hours, Remaining: alloc.RemainingHours()}
	}

	usedDays := alloc.UsedDays + days
	usedHours := alloc.UsedHours + hours
	if err := repo.UpdateAllocationUsage(ctx, alloc.ID, usedDays, usedHours); err != nil {
		return fmt.Errorf("error updating allocation: %w", err)
	}

	alloc.UsedDays = usedDays
	alloc.UsedHours = usedHours
	return nil
}

// Release returns days and hours to the allocation. It is the exact inverse of Reserve.
func (Ledger) Release(ctx context.Context, repo repository.Repository, alloc *models.LeaveAllocation, days, hours float64) error {
	if days < 0 || hours < 0 {
		return validationError("released quantities must not be negative")
	}
	if days > alloc.UsedDays+balanceEpsilon || hours > alloc.UsedHours+balanceEpsilon {
		return validationError("cannot release more than is used (%.2f days, %.2f hours)", alloc.UsedDays, alloc.UsedHours)
	}

	usedDays := clampZero(alloc.UsedDays - days)
	usedHours := clampZero(alloc.UsedHours - hours)
	if err := repo.UpdateAllocationUsage(ctx, alloc.ID, usedDays, usedHours); err != nil {
		return fmt.Errorf("error updating allocation: %w", err)
	}

	alloc.UsedDays = usedDays
	alloc.UsedHours = usedHours
	return nil
}

// SetAllocated changes the granted amounts. It refuses to go below what is already used.
func (Ledger) SetAllocated(ctx context.Context, repo repository.Repository, alloc *models.LeaveAllocation, days, hours float64) error {
	if days < 0 || hours < 0 {
		return validationError("allocations must not be negative")
	}
	if days+balanceEpsilon < alloc.UsedDays {
		return validationError("allocated days %.2f below used days %.2f", days, alloc.UsedDays)
	}
	if hours+balanceEpsilon < alloc.UsedHours {
		return validationError("allocated hours %.2f below used hours %.2f", hours, alloc.UsedHours)
	}

	if err := repo.UpdateAllocationAmounts(ctx, alloc.ID, days, hours); err != nil {
		return fmt.Errorf("error updating allocation: %w", err)
	}

	alloc.AllocatedDays = days
	alloc.AllocatedHours = hours
	return nil
}

func clampZero(v float64) float64 {
	if v < balanceEpsilon {
		return 0
	}
	return v
}
