package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rongwang/staff-scheduler/internal/models"
	"github.com/rongwang/staff-scheduler/internal/repository"
)

const (
	displayDateLayout   = "02/01/2006"
	maxLeaveHoursPerDay = 24
)

// countWeekdays returns the number of Monday-Friday dates in [start, end]
func countWeekdays(start, end models.Date) int {
	n := 0
	for d := start; !d.After(end); d = d.AddDays(1) {
		if d.IsWeekday() {
			n++
		}
	}
	return n
}

// RequestLeave creates a pending leave request for the caller
func (s *DefaultService) RequestLeave(ctx context.Context, actorID string, req models.CreateLeaveRequest) (*models.LeaveRequestResponse, error) {
	a, err := s.authorize(ctx, actorID, models.PermLeaveRequest)
	if err != nil {
		return nil, err
	}

	if req.StartDate.IsZero() {
		return nil, validationError("start date is required")
	}
	if req.EndDate.IsZero() {
		req.EndDate = req.StartDate
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, validationError("end date must not be before start date")
	}
	if req.StartDate.Year() != req.EndDate.Year() {
		return nil, validationError("leave cannot span calendar years; submit one request per year")
	}
	if req.Hours < 0 {
		return nil, validationError("hours must not be negative")
	}
	if req.Hours > maxLeaveHoursPerDay {
		return nil, validationError("hourly leave is limited to %d hours", maxLeaveHoursPerDay)
	}

	lt, err := s.repo.GetLeaveType(ctx, req.LeaveTypeID)
	if err != nil {
		return nil, fmt.Errorf("error getting leave type: %w", err)
	}
	if lt == nil {
		return nil, notFound("leave type")
	}
	if !lt.IsActive {
		return nil, validationError("leave type %s is no longer available", lt.Name)
	}

	leave := &models.LeaveRequest{
		UserID:      a.id(),
		LeaveTypeID: lt.ID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Reason:      strings.TrimSpace(req.Reason),
		Status:      models.LeaveStatusPending,
	}
	if req.Hours > 0 {
		if !req.StartDate.Equal(req.EndDate) {
			return nil, validationError("hourly leave must start and end on the same date")
		}
		leave.Hours = req.Hours
	} else {
		leave.Days = float64(countWeekdays(req.StartDate, req.EndDate))
		if leave.Days == 0 {
			return nil, validationError("requested range contains no working days")
		}
	}

	overlapping, err := s.repo.ListApprovedLeaveOverlapping(ctx, a.id(), leave.StartDate, leave.EndDate)
	if err != nil {
		return nil, fmt.Errorf("error checking existing leave: %w", err)
	}
	if len(overlapping) > 0 {
		return nil, &ConflictError{
			Kind:    ConflictApprovedLeave,
			Date:    maxDate(leave.StartDate, overlapping[0].StartDate),
			Details: "overlaps an approved leave request",
		}
	}

	restricted, err := s.repo.ListRestrictedDays(ctx, leave.StartDate, leave.EndDate)
	if err != nil {
		return nil, fmt.Errorf("error checking restricted days: %w", err)
	}

	if err := s.repo.CreateLeaveRequest(ctx, leave); err != nil {
		return nil, wrapRepoError("creating leave request", err)
	}

	s.emit(ctx, Event{
		ActorID:    a.id(),
		Action:     "leave.requested",
		EntityType: "leave_request",
		EntityID:   leave.ID,
		Details: map[string]interface{}{
			"leaveType": lt.Name,
			"startDate": leave.StartDate.String(),
			"endDate":   leave.EndDate.String(),
			"days":      leave.Days,
			"hours":     leave.Hours,
		},
		Notify: s.approverNotification(ctx, a, lt, leave),
	})

	return &models.LeaveRequestResponse{
		Status:        "success",
		Request:       leave,
		RestrictedDay: len(restricted) > 0,
	}, nil
}

// approverNotification addresses a new request to everyone who can approve
// it except the requester. Nil when there is nobody to tell.
func (s *DefaultService) approverNotification(ctx context.Context, requester *actor, lt *models.LeaveType, leave *models.LeaveRequest) *NotificationSpec {
	ids, err := s.repo.ListUserIDsWithPermission(ctx, models.PermLeaveApprove)
	if err != nil {
		s.logger.Warnf("could not resolve approvers for leave request %s: %v", leave.ID, err)
		return nil
	}

	approvers := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != requester.id() {
			approvers = append(approvers, id)
		}
	}
	if len(approvers) == 0 {
		return nil
	}

	return &NotificationSpec{
		UserIDs: approvers,
		Title:   "New Leave Request",
		Message: fmt.Sprintf("%s requested %s from %s to %s",
			requester.user.FullName(), lt.Name,
			leave.StartDate.Format(displayDateLayout), leave.EndDate.Format(displayDateLayout)),
		Type:        "leave",
		RelatedID:   leave.ID,
		RelatedType: "leave_request",
	}
}

// ApproveLeave moves a pending request to approved and reserves its days and
// hours from the matching allocation in the same transaction. On any failure
// the request stays pending and the allocation is untouched.
func (s *DefaultService) ApproveLeave(ctx context.Context, actorID, requestID, notes string) (*models.LeaveRequest, error) {
	a, err := s.authorize(ctx, actorID, models.PermLeaveApprove)
	if err != nil {
		return nil, err
	}

	var approved *models.LeaveRequest
	err = s.repo.InTx(ctx, func(repo repository.Repository) error {
		leave, err := lockPendingLeave(ctx, repo, requestID, models.LeaveStatusApproved)
		if err != nil {
			return err
		}

		// serializes approvals for the requester across leave types
		if err := repo.LockUser(ctx, leave.UserID); err != nil {
			return fmt.Errorf("error locking user: %w", err)
		}

		overlapping, err := repo.ListApprovedLeaveOverlapping(ctx, leave.UserID, leave.StartDate, leave.EndDate)
		if err != nil {
			return fmt.Errorf("error checking existing leave: %w", err)
		}
		if len(overlapping) > 0 {
			return &ConflictError{
				Kind:    ConflictApprovedLeave,
				Date:    maxDate(leave.StartDate, overlapping[0].StartDate),
				Details: "overlaps an approved leave request",
			}
		}

		alloc, err := s.ledger.GetOrCreate(ctx, repo, leave.UserID, leave.LeaveTypeID, leave.StartDate.Year())
		if err != nil {
			return err
		}
		if err := s.ledger.Reserve(ctx, repo, alloc, leave.Days, leave.Hours); err != nil {
			return err
		}

		if err := s.review(ctx, repo, a, leave, models.LeaveStatusApproved, notes); err != nil {
			return err
		}
		approved = leave
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, s.leaveTransitionEvent(ctx, a.id(), approved, models.LeaveStatusPending))
	return approved, nil
}

// RejectLeave moves a pending request to rejected. Notes are mandatory and
// the allocation is never touched.
func (s *DefaultService) RejectLeave(ctx context.Context, actorID, requestID, notes string) (*models.LeaveRequest, error) {
	a, err := s.authorize(ctx, actorID, models.PermLeaveApprove)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(notes) == "" {
		return nil, validationError("a reason is required when rejecting leave")
	}

	var rejected *models.LeaveRequest
	err = s.repo.InTx(ctx, func(repo repository.Repository) error {
		leave, err := lockPendingLeave(ctx, repo, requestID, models.LeaveStatusRejected)
		if err != nil {
			return err
		}
		if err := s.review(ctx, repo, a, leave, models.LeaveStatusRejected, notes); err != nil {
			return err
		}
		rejected = leave
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, s.leaveTransitionEvent(ctx, a.id(), rejected, models.LeaveStatusPending))
	return rejected, nil
}

// WithdrawLeave lets the requester delete their own pending request
func (s *DefaultService) WithdrawLeave(ctx context.Context, actorID, requestID string) error {
	a, err := s.authorize(ctx, actorID, models.PermLeaveRequest)
	if err != nil {
		return err
	}

	var withdrawn *models.LeaveRequest
	err = s.repo.InTx(ctx, func(repo repository.Repository) error {
		leave, err := repo.GetLeaveRequestForUpdate(ctx, requestID)
		if err != nil {
			return fmt.Errorf("error getting leave request: %w", err)
		}
		if leave == nil {
			return notFound("leave request")
		}
		if leave.UserID != a.id() {
			return fmt.Errorf("%w: only the requester can withdraw a leave request", ErrPermissionDenied)
		}
		if leave.Status != models.LeaveStatusPending {
			return invalidTransition(string(leave.Status), "withdrawn")
		}
		if err := repo.DeleteLeaveRequest(ctx, leave.ID); err != nil {
			return fmt.Errorf("error deleting leave request: %w", err)
		}
		withdrawn = leave
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, Event{
		ActorID:    a.id(),
		Action:     "leave.withdrawn",
		EntityType: "leave_request",
		EntityID:   withdrawn.ID,
		Details:    map[string]interface{}{"status": string(withdrawn.Status)},
	})
	return nil
}

// RevokeLeave deletes an approved request and releases its reservation in the same transaction
func (s *DefaultService) RevokeLeave(ctx context.Context, actorID, requestID string) error {
	a, err := s.authorize(ctx, actorID, models.PermLeaveApprove)
	if err != nil {
		return err
	}

	var revoked *models.LeaveRequest
	err = s.repo.InTx(ctx, func(repo repository.Repository) error {
		leave, err := repo.GetLeaveRequestForUpdate(ctx, requestID)
		if err != nil {
			return fmt.Errorf("error getting leave request: %w", err)
		}
		if leave == nil {
			return notFound("leave request")
		}
		if leave.Status != models.LeaveStatusApproved {
			return invalidTransition(string(leave.Status), "revoked")
		}

		alloc, err := s.ledger.GetOrCreate(ctx, repo, leave.UserID, leave.LeaveTypeID, leave.StartDate.Year())
		if err != nil {
			return err
		}
		if err := s.ledger.Release(ctx, repo, alloc, leave.Days, leave.Hours); err != nil {
			return err
		}
		if err := repo.DeleteLeaveRequest(ctx, leave.ID); err != nil {
			return fmt.Errorf("error deleting leave request: %w", err)
		}
		revoked = leave
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, Event{
		ActorID:    a.id(),
		Action:     "leave.revoked",
		EntityType: "leave_request",
		EntityID:   revoked.ID,
		Details: map[string]interface{}{
			"oldStatus": string(models.LeaveStatusApproved),
			"days":      revoked.Days,
			"hours":     revoked.Hours,
		},
		Notify: &NotificationSpec{
			UserIDs: []string{revoked.UserID},
			Title:   "Leave Cancelled",
			Message: fmt.Sprintf("Your approved leave from %s to %s has been cancelled and the days returned to your balance.",
				revoked.StartDate.Format(displayDateLayout), revoked.EndDate.Format(displayDateLayout)),
			Type:        "leave",
			Popup:       true,
			RelatedID:   revoked.ID,
			RelatedType: "leave_request",
		},
	})
	return nil
}

// lockPendingLeave loads and locks a request, failing unless it is pending
func lockPendingLeave(ctx context.Context, repo repository.Repository, requestID string, to models.LeaveStatus) (*models.LeaveRequest, error) {
	leave, err := repo.GetLeaveRequestForUpdate(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("error getting leave request: %w", err)
	}
	if leave == nil {
		return nil, notFound("leave request")
	}
	if leave.Status != models.LeaveStatusPending {
		return nil, invalidTransition(string(leave.Status), string(to))
	}
	return leave, nil
}

func (s *DefaultService) review(ctx context.Context, repo repository.Repository, a *actor, leave *models.LeaveRequest, to models.LeaveStatus, notes string) error {
	reviewer := a.id()
	now := s.now()

	updated := *leave
	updated.Status = to
	updated.ReviewedBy = &reviewer
	updated.ReviewedAt = &now
	updated.ReviewNotes = strings.TrimSpace(notes)

	if err := repo.UpdateLeaveRequestReview(ctx, &updated); err != nil {
		return fmt.Errorf("error updating leave request: %w", err)
	}
	*leave = updated
	return nil
}

func (s *DefaultService) leaveTransitionEvent(ctx context.Context, actorID string, leave *models.LeaveRequest, from models.LeaveStatus) Event {
	typeName := "leave"
	if lt, err := s.repo.GetLeaveType(ctx, leave.LeaveTypeID); err == nil && lt != nil {
		typeName = lt.Name
	}

	verb := string(leave.Status)
	message := fmt.Sprintf("Your %s request for %s to %s has been %s.",
		typeName, leave.StartDate.Format(displayDateLayout), leave.EndDate.Format(displayDateLayout), verb)
	if leave.Status == models.LeaveStatusRejected && leave.ReviewNotes != "" {
		message += " Reason: " + leave.ReviewNotes
	}

	return Event{
		ActorID:    actorID,
		Action:     "leave." + verb,
		EntityType: "leave_request",
		EntityID:   leave.ID,
		Details: map[string]interface{}{
			"oldStatus": string(from),
			"newStatus": string(leave.Status),
			"userId":    leave.UserID,
		},
		Notify: &NotificationSpec{
			UserIDs:     []string{leave.UserID},
			Title:       "Leave Request " + strings.ToUpper(verb[:1]) + verb[1:],
			Message:     message,
			Type:        "leave",
			Popup:       true,
			RelatedID:   leave.ID,
			RelatedType: "leave_request",
		},
	}
}

func (s *DefaultService) ListMyLeave(ctx context.Context, actorID string, year int) ([]models.LeaveRequest, error) {
	a, err := s.authorize(ctx, actorID, models.PermLeaveViewOwn)
	if err != nil {
		return nil, err
	}

	requests, err := s.repo.ListLeaveRequests(ctx, repository.LeaveRequestFilter{UserID: a.id(), Year: year})
	if err != nil {
		return nil, fmt.Errorf("error listing leave requests: %w", err)
	}
	return requests, nil
}

func (s *DefaultService) ListLeaveRequests(ctx context.Context, actorID string, status models.LeaveStatus) ([]models.LeaveRequest, error) {
	if _, err := s.authorize(ctx, actorID, models.PermLeaveViewAll); err != nil {
		return nil, err
	}

	switch status {
	case "", models.LeaveStatusPending, models.LeaveStatusApproved, models.LeaveStatusRejected:
	default:
		return nil, validationError("unknown leave status %q", status)
	}

	requests, err := s.repo.ListLeaveRequests(ctx, repository.LeaveRequestFilter{Status: status})
	if err != nil {
		return nil, fmt.Errorf("error listing leave requests: %w", err)
	}
	return requests, nil
}

func (s *DefaultService) PendingLeaveCount(ctx context.Context, actorID string) (int, error) {
	if _, err := s.authorize(ctx, actorID, models.PermLeaveApprove); err != nil {
		return 0, err
	}

	n, err := s.repo.CountLeaveRequests(ctx, models.LeaveStatusPending)
	if err != nil {
		return 0, fmt.Errorf("error counting leave requests: %w", err)
	}
	return n, nil
}

// LeaveBalance lists remaining allocation per active leave type. Viewing
// another user's balance needs leave.view_all.
func (s *DefaultService) LeaveBalance(ctx context.Context, actorID, userID string, year int) ([]models.LeaveBalance, error) {
	a, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if userID == "" || userID == a.id() {
		userID = a.id()
		err = a.require(models.PermLeaveViewOwn)
	} else {
		err = a.require(models.PermLeaveViewAll)
	}
	if err != nil {
		return nil, err
	}
	if year == 0 {
		year = s.now().Year()
	}

	types, err := s.repo.ListLeaveTypes(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("error listing leave types: %w", err)
	}
	allocs, err := s.repo.ListAllocationsByUser(ctx, userID, year)
	if err != nil {
		return nil, fmt.Errorf("error listing allocations: %w", err)
	}

	byType := make(map[string]models.LeaveAllocation, len(allocs))
	for _, al := range allocs {
		byType[al.LeaveTypeID] = al
	}

	balances := make([]models.LeaveBalance, 0, len(types))
	for _, lt := range types {
		al := byType[lt.ID]
		balances = append(balances, models.LeaveBalance{
			LeaveTypeID:    lt.ID,
			LeaveTypeName:  lt.Name,
			Year:           year,
			AllocatedDays:  al.AllocatedDays,
			UsedDays:       al.UsedDays,
			RemainingDays:  al.RemainingDays(),
			AllocatedHours: al.AllocatedHours,
			UsedHours:      al.UsedHours,
			RemainingHours: al.RemainingHours(),
		})
	}
	return balances, nil
}

// SetAllocation grants a user days/hours of a leave type for a year
func (s *DefaultService) SetAllocation(ctx context.Context, actorID string, req models.SetAllocationRequest) (*models.LeaveAllocation, error) {
	a, err := s.authorize(ctx, actorID, models.PermLeaveAllocate)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, notFound("user")
	}
	lt, err := s.repo.GetLeaveType(ctx, req.LeaveTypeID)
	if err != nil {
		return nil, fmt.Errorf("error getting leave type: %w", err)
	}
	if lt == nil {
		return nil, notFound("leave type")
	}

	var alloc *models.LeaveAllocation
	var previous models.LeaveAllocation
	err = s.repo.InTx(ctx, func(repo repository.Repository) error {
		al, err := s.ledger.GetOrCreate(ctx, repo, user.ID, lt.ID, req.Year)
		if err != nil {
			return err
		}
		previous = *al
		if err := s.ledger.SetAllocated(ctx, repo, al, req.AllocatedDays, req.AllocatedHours); err != nil {
			return err
		}
		alloc = al
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, Event{
		ActorID:    a.id(),
		Action:     "leave.allocation_set",
		EntityType: "leave_allocation",
		EntityID:   alloc.ID,
		Details: map[string]interface{}{
			"userId":            user.ID,
			"leaveType":         lt.Name,
			"year":              req.Year,
			"oldAllocatedDays":  previous.AllocatedDays,
			"newAllocatedDays":  alloc.AllocatedDays,
			"oldAllocatedHours": previous.AllocatedHours,
			"newAllocatedHours": alloc.AllocatedHours,
		},
	})
	return alloc, nil
}

func (s *DefaultService) ListAllocations(ctx context.Context, actorID string, year int) ([]models.LeaveAllocation, error) {
	if _, err := s.authorize(ctx, actorID, models.PermLeaveAllocate); err != nil {
		return nil, err
	}
	if year == 0 {
		year = s.now().Year()
	}

	allocs, err := s.repo.ListAllocationsByYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("error listing allocations: %w", err)
	}
	return allocs, nil
}

func maxDate(a, b models.Date) models.Date {
	if a.After(b) {
		return a
	}
	return b
}
