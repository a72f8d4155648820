package service

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rongwang/staff-scheduler/internal/models"
	"github.com/rongwang/staff-scheduler/internal/repository"
)

// memState is the data behind memRepo. Values are stored by value so a
// shallow map clone is a full snapshot.
type memState struct {
	users         map[string]models.User
	perms         map[models.Permission]models.PermissionDef
	roles         map[string]models.Role
	rolePerms     map[string][]models.Permission
	userRoles     map[string][]string
	leaveTypes    map[string]models.LeaveType
	allocs        map[string]models.LeaveAllocation
	leave         map[string]models.LeaveRequest
	schedules     map[string]models.Schedule
	unavailable   map[string]models.Unavailability
	restricted    map[string]models.RestrictedDay
	requirements  map[string]models.MonthlyRequirement
	tasks         map[string]models.Task
	posts         map[string]models.BoardPost
	notifications map[string]models.Notification
	audit         []models.AuditLog
	categories    map[string]models.ExpenseCategory
	expenses      map[string]models.Expense
}

func newMemState() *memState {
	return &memState{
		users:         map[string]models.User{},
		perms:         map[models.Permission]models.PermissionDef{},
		roles:         map[string]models.Role{},
		rolePerms:     map[string][]models.Permission{},
		userRoles:     map[string][]string{},
		leaveTypes:    map[string]models.LeaveType{},
		allocs:        map[string]models.LeaveAllocation{},
		leave:         map[string]models.LeaveRequest{},
		schedules:     map[string]models.Schedule{},
		unavailable:   map[string]models.Unavailability{},
		restricted:    map[string]models.RestrictedDay{},
		requirements:  map[string]models.MonthlyRequirement{},
		tasks:         map[string]models.Task{},
		posts:         map[string]models.BoardPost{},
		notifications: map[string]models.Notification{},
		categories:    map[string]models.ExpenseCategory{},
		expenses:      map[string]models.Expense{},
	}
}

func (s *memState) clone() *memState {
	return &memState{
		users:         maps.Clone(s.users),
		perms:         maps.Clone(s.perms),
		roles:         maps.Clone(s.roles),
		rolePerms:     maps.Clone(s.rolePerms),
		userRoles:     maps.Clone(s.userRoles),
		leaveTypes:    maps.Clone(s.leaveTypes),
		allocs:        maps.Clone(s.allocs),
		leave:         maps.Clone(s.leave),
		schedules:     maps.Clone(s.schedules),
		unavailable:   maps.Clone(s.unavailable),
		restricted:    maps.Clone(s.restricted),
		requirements:  maps.Clone(s.requirements),
		tasks:         maps.Clone(s.tasks),
		posts:         maps.Clone(s.posts),
		notifications: maps.Clone(s.notifications),
		audit:         append([]models.AuditLog(nil), s.audit...),
		categories:    maps.Clone(s.categories),
		expenses:      maps.Clone(s.expenses),
	}
}

// memStore is shared by a memRepo and the tx-bound copies it hands to InTx
type memStore struct {
	txMu   sync.Mutex // serializes transactions, standing in for row locks
	dataMu sync.Mutex
	state  *memState

	// failAllocationUpdate makes UpdateAllocationUsage fail, for rollback tests
	failAllocationUpdate bool
}

// memRepo is an in-memory repository.Repository for service tests
type memRepo struct {
	store *memStore
	inTx  bool
}

var _ repository.Repository = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{store: &memStore{state: newMemState()}}
}

func (r *memRepo) with(fn func(s *memState) error) error {
	r.store.dataMu.Lock()
	defer r.store.dataMu.Unlock()
	return fn(r.store.state)
}

func (r *memRepo) InTx(ctx context.Context, fn func(repo repository.Repository) error) (err error) {
	if r.inTx {
		return fn(r)
	}
	r.store.txMu.Lock()
	defer r.store.txMu.Unlock()

	r.store.dataMu.Lock()
	snapshot := r.store.state.clone()
	r.store.dataMu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			r.restore(snapshot)
			panic(p)
		}
		if err != nil {
			r.restore(snapshot)
		}
	}()
	return fn(&memRepo{store: r.store, inTx: true})
}

func (r *memRepo) restore(snapshot *memState) {
	r.store.dataMu.Lock()
	r.store.state = snapshot
	r.store.dataMu.Unlock()
}

func memID(id *string) {
	if *id == "" {
		*id = uuid.New().String()
	}
}

func inRange(d, from, to models.Date) bool {
	if !from.IsZero() && d.Before(from) {
		return false
	}
	if !to.IsZero() && d.After(to) {
		return false
	}
	return true
}

// Users

func (r *memRepo) CreateUser(ctx context.Context, user *models.User) error {
	return r.with(func(s *memState) error {
		for _, u := range s.users {
			if strings.EqualFold(u.Email, user.Email) {
				return fmt.Errorf("%w: users_email_key", repository.ErrDuplicate)
			}
			if u.IsFirstAccount && user.IsFirstAccount {
				return fmt.Errorf("%w: idx_users_single_first_account", repository.ErrDuplicate)
			}
		}
		memID(&user.ID)
		user.CreatedAt = time.Now()
		s.users[user.ID] = *user
		return nil
	})
}

func (r *memRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var out *models.User
	err := r.with(func(s *memState) error {
		for _, u := range s.users {
			if strings.EqualFold(u.Email, email) {
				u := u
				out = &u
			}
		}
		return nil
	})
	return out, err
}

func (r *memRepo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var out *models.User
	err := r.with(func(s *memState) error {
		if u, ok := s.users[id]; ok {
			out = &u
		}
		return nil
	})
	return out, err
}

func (r *memRepo) UpdateUser(ctx context.Context, user *models.User) error {
	return r.with(func(s *memState) error {
		s.users[user.ID] = *user
		return nil
	})
}

func (r *memRepo) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	return r.with(func(s *memState) error {
		u := s.users[userID]
		u.LastLogin = &at
		s.users[userID] = u
		return nil
	})
}

func (r *memRepo) CountUsers(ctx context.Context) (int, error) {
	n := 0
	err := r.with(func(s *memState) error {
		n = len(s.users)
		return nil
	})
	return n, err
}

// LockUser is a no-op: memRepo transactions are already serialized
func (r *memRepo) LockUser(ctx context.Context, id string) error {
	return nil
}

func (r *memRepo) ListUserIDsWithPermission(ctx context.Context, perm models.Permission) ([]string, error) {
	var users []models.User
	err := r.with(func(s *memState) error {
		for _, u := range s.users {
			if !u.IsActive {
				continue
			}
			granted := u.IsFirstAccount
			for _, roleID := range s.userRoles[u.ID] {
				for _, p := range s.rolePerms[roleID] {
					granted = granted || p == perm
				}
			}
			if granted {
				users = append(users, u)
			}
		}
		return nil
	})
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, err
}

func (r *memRepo) ListUsers(ctx context.Context, activeOnly bool) ([]models.User, error) {
	var out []models.User
	err := r.with(func(s *memState) error {
		for _, u := range s.users {
			if !activeOnly || u.IsActive {
				out = append(out, u)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, err
}

// Roles and permissions

func (r *memRepo) UpsertPermission(ctx context.Context, perm models.PermissionDef) error {
	return r.with(func(s *memState) error {
		s.perms[perm.Code] = perm
		return nil
	})
}

func (r *memRepo) CreateRole(ctx context.Context, role *models.Role) error {
	return r.with(func(s *memState) error {
		memID(&role.ID)
		s.roles[role.ID] = *role
		return nil
	})
}

func (r *memRepo) GetRoleByID(ctx context.Context, id string) (*models.Role, error) {
	var out *models.Role
	err := r.with(func(s *memState) error {
		if role, ok := s.roles[id]; ok {
			out = &role
		}
		return nil
	})
	return out, err
}

func (r *memRepo) GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	var out *models.Role
	err := r.with(func(s *memState) error {
		for _, role := range s.roles {
			if role.Name == name {
				role := role
				out = &role
			}
		}
		return nil
	})
	return out, err
}

func (r *memRepo) ListRoles(ctx context.Context) ([]models.Role, error) {
	var out []models.Role
	err := r.with(func(s *memState) error {
		for _, role := range s.roles {
			out = append(out, role)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (r *memRepo) SetRolePermissions(ctx context.Context, roleID string, perms []models.Permission) error {
	return r.with(func(s *memState) error {
		s.rolePerms[roleID] = append([]models.Permission(nil), perms...)
		return nil
	})
}

func (r *memRepo) GetRolePermissions(ctx context.Context, roleID string) ([]models.Permission, error) {
	var out []models.Permission
	err := r.with(func(s *memState) error {
		out = append(out, s.rolePerms[roleID]...)
		return nil
	})
	return out, err
}

func (r *memRepo) SetUserRoles(ctx context.Context, userID string, roleIDs []string) error {
	return r.with(func(s *memState) error {
		s.userRoles[userID] = append([]string(nil), roleIDs...)
		return nil
	})
}

func (r *memRepo) GetUserRoles(ctx context.Context, userID string) ([]models.Role, error) {
	var out []models.Role
	err := r.with(func(s *memState) error {
		for _, id := range s.userRoles[userID] {
			out = append(out, s.roles[id])
		}
		return nil
	})
	return out, err
}

func (r *memRepo) GetUserPermissions(ctx context.Context, userID string) ([]models.Permission, error) {
	var out []models.Permission
	err := r.with(func(s *memState) error {
		seen := map[models.Permission]bool{}
		for _, id := range s.userRoles[userID] {
			for _, p := range s.rolePerms[id] {
				if !seen[p] {
					seen[p] = true
					out = append(out, p)
				}
			}
		}
		return nil
	})
	return out, err
}

// Leave types

func (r *memRepo) CreateLeaveType(ctx context.Context, lt *models.LeaveType) error {
	return r.with(func(s *memState) error {
		for _, existing := range s.leaveTypes {
			if existing.Name == lt.Name {
				return fmt.Errorf("%w: leave_types_name_key", repository.ErrDuplicate)
			}
		}
		memID(&lt.ID)
		s.leaveTypes[lt.ID] = *lt
		return nil
	})
}

func (r *memRepo) GetLeaveType(ctx context.Context, id string) (*models.LeaveType, error) {
	var out *models.LeaveType
	err := r.with(func(s *memState) error {
		if lt, ok := s.leaveTypes[id]; ok {
			out = &lt
		}
		return nil
	})
	return out, err
}

func (r *memRepo) GetLeaveTypeByName(ctx context.Context, name string) (*models.LeaveType, error) {
	var out *models.LeaveType
	err := r.with(func(s *memState) error {
		for _, lt := range s.leaveTypes {
			if lt.Name == name {
				lt := lt
				out = &lt
			}
		}
		return nil
	})
	return out, err
}

func (r *memRepo) ListLeaveTypes(ctx context.Context, activeOnly bool) ([]models.LeaveType, error) {
	var out []models.LeaveType
	err := r.with(func(s *memState) error {
		for _, lt := range s.leaveTypes {
			if !activeOnly || lt.IsActive {
				out = append(out, lt)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (r *memRepo) UpdateLeaveType(ctx context.Context, lt *models.LeaveType) error {
	return r.with(func(s *memState) error {
		s.leaveTypes[lt.ID] = *lt
		return nil
	})
}

// Allocations

func findAllocation(s *memState, userID, leaveTypeID string, year int) (models.LeaveAllocation, bool) {
	for _, a := range s.allocs {
		if a.UserID == userID && a.LeaveTypeID == leaveTypeID && a.Year == year {
			return a, true
		}
	}
	return models.LeaveAllocation{}, false
}

func (r *memRepo) EnsureAllocation(ctx context.Context, userID, leaveTypeID string, year int) error {
	return r.with(func(s *memState) error {
		if _, ok := findAllocation(s, userID, leaveTypeID, year); ok {
			return nil
		}
		a := models.LeaveAllocation{UserID: userID, LeaveTypeID: leaveTypeID, Year: year}
		memID(&a.ID)
		s.allocs[a.ID] = a
		return nil
	})
}

func (r *memRepo) GetAllocation(ctx context.Context, userID, leaveTypeID string, year int) (*models.LeaveAllocation, error) {
	var out *models.LeaveAllocation
	err := r.with(func(s *memState) error {
		if a, ok := findAllocation(s, userID, leaveTypeID, year); ok {
			out = &a
		}
		return nil
	})
	return out, err
}

func (r *memRepo) GetAllocationForUpdate(ctx context.Context, userID, leaveTypeID string, year int) (*models.LeaveAllocation, error) {
	if !r.inTx {
		return nil, fmt.Errorf("GetAllocationForUpdate requires a transaction")
	}
	return r.GetAllocation(ctx, userID, leaveTypeID, year)
}

func (r *memRepo) UpdateAllocationUsage(ctx context.Context, id string, usedDays, usedHours float64) error {
	return r.with(func(s *memState) error {
		if r.store.failAllocationUpdate {
			return fmt.Errorf("allocation write failed")
		}
		a := s.allocs[id]
		a.UsedDays, a.UsedHours = usedDays, usedHours
		s.allocs[id] = a
		return nil
	})
}

func (r *memRepo) UpdateAllocationAmounts(ctx context.Context, id string, allocatedDays, allocatedHours float64) error {
	return r.with(func(s *memState) error {
		a := s.allocs[id]
		a.AllocatedDays, a.AllocatedHours = allocatedDays, allocatedHours
		s.allocs[id] = a
		return nil
	})
}

func (r *memRepo) ListAllocationsByUser(ctx context.Context, userID string, year int) ([]models.LeaveAllocation, error) {
	var out []models.LeaveAllocation
	err := r.with(func(s *memState) error {
		for _, a := range s.allocs {
			if a.UserID == userID && a.Year == year {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

func (r *memRepo) ListAllocationsByYear(ctx context.Context, year int) ([]models.LeaveAllocation, error) {
	var out []models.LeaveAllocation
	err := r.with(func(s *memState) error {
		for _, a := range s.allocs {
			if a.Year == year {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

// Leave requests

func (r *memRepo) CreateLeaveRequest(ctx context.Context, req *models.LeaveRequest) error {
	return r.with(func(s *memState) error {
		memID(&req.ID)
		req.CreatedAt = time.Now()
		s.leave[req.ID] = *req
		return nil
	})
}

func (r *memRepo) GetLeaveRequest(ctx context.Context, id string) (*models.LeaveRequest, error) {
	var out *models.LeaveRequest
	err := r.with(func(s *memState) error {
		if lr, ok := s.leave[id]; ok {
			out = &lr
		}
		return nil
	})
	return out, err
}

func (r *memRepo) GetLeaveRequestForUpdate(ctx context.Context, id string) (*models.LeaveRequest, error) {
	if !r.inTx {
		return nil, fmt.Errorf("GetLeaveRequestForUpdate requires a transaction")
	}
	return r.GetLeaveRequest(ctx, id)
}

func (r *memRepo) UpdateLeaveRequestReview(ctx context.Context, req *models.LeaveRequest) error {
	return r.with(func(s *memState) error {
		s.leave[req.ID] = *req
		return nil
	})
}

func (r *memRepo) DeleteLeaveRequest(ctx context.Context, id string) error {
	return r.with(func(s *memState) error {
		delete(s.leave, id)
		return nil
	})
}

func (r *memRepo) ListLeaveRequests(ctx context.Context, filter repository.LeaveRequestFilter) ([]models.LeaveRequest, error) {
	var out []models.LeaveRequest
	err := r.with(func(s *memState) error {
		for _, lr := range s.leave {
			if filter.UserID != "" && lr.UserID != filter.UserID {
				continue
			}
			if filter.Status != "" && lr.Status != filter.Status {
				continue
			}
			if filter.Year != 0 && lr.StartDate.Year() != filter.Year {
				continue
			}
			out = append(out, lr)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, err
}

func (r *memRepo) CountLeaveRequests(ctx context.Context, status models.LeaveStatus) (int, error) {
	n := 0
	err := r.with(func(s *memState) error {
		for _, lr := range s.leave {
			if lr.Status == status {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *memRepo) ListApprovedLeaveOverlapping(ctx context.Context, userID string, from, to models.Date) ([]models.LeaveRequest, error) {
	var out []models.LeaveRequest
	err := r.with(func(s *memState) error {
		for _, lr := range s.leave {
			if lr.Status != models.LeaveStatusApproved || (userID != "" && lr.UserID != userID) {
				continue
			}
			if lr.StartDate.After(to) || lr.EndDate.Before(from) {
				continue
			}
			out = append(out, lr)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, err
}

// Schedules

func (r *memRepo) CreateSchedule(ctx context.Context, sh *models.Schedule) error {
	return r.with(func(s *memState) error {
		memID(&sh.ID)
		s.schedules[sh.ID] = *sh
		return nil
	})
}

func (r *memRepo) GetSchedule(ctx context.Context, id string) (*models.Schedule, error) {
	var out *models.Schedule
	err := r.with(func(s *memState) error {
		if sh, ok := s.schedules[id]; ok {
			out = &sh
		}
		return nil
	})
	return out, err
}

func (r *memRepo) UpdateSchedule(ctx context.Context, sh *models.Schedule) error {
	return r.with(func(s *memState) error {
		s.schedules[sh.ID] = *sh
		return nil
	})
}

func (r *memRepo) DeleteSchedule(ctx context.Context, id string) error {
	return r.with(func(s *memState) error {
		delete(s.schedules, id)
		return nil
	})
}

func (r *memRepo) ListSchedules(ctx context.Context, filter repository.ScheduleFilter) ([]models.Schedule, error) {
	var out []models.Schedule
	err := r.with(func(s *memState) error {
		for _, sh := range s.schedules {
			if filter.UserID != "" && sh.UserID != filter.UserID {
				continue
			}
			if !inRange(sh.Date, filter.From, filter.To) {
				continue
			}
			out = append(out, sh)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].StartTime.Minutes < out[j].StartTime.Minutes
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, err
}

// Unavailability

func (r *memRepo) CreateUnavailability(ctx context.Context, u *models.Unavailability) error {
	return r.with(func(s *memState) error {
		for _, existing := range s.unavailable {
			if existing.UserID == u.UserID && existing.Date.Equal(u.Date) {
				return fmt.Errorf("%w: unavailability_user_date_key", repository.ErrDuplicate)
			}
		}
		memID(&u.ID)
		s.unavailable[u.ID] = *u
		return nil
	})
}

func (r *memRepo) GetUnavailability(ctx context.Context, id string) (*models.Unavailability, error) {
	var out *models.Unavailability
	err := r.with(func(s *memState) error {
		if u, ok := s.unavailable[id]; ok {
			out = &u
		}
		return nil
	})
	return out, err
}

func (r *memRepo) GetUnavailabilityOn(ctx context.Context, userID string, date models.Date) (*models.Unavailability, error) {
	var out *models.Unavailability
	err := r.with(func(s *memState) error {
		for _, u := range s.unavailable {
			if u.UserID == userID && u.Date.Equal(date) {
				u := u
				out = &u
			}
		}
		return nil
	})
	return out, err
}

func (r *memRepo) ListUnavailability(ctx context.Context, userID string, from, to models.Date) ([]models.Unavailability, error) {
	var out []models.Unavailability
	err := r.with(func(s *memState) error {
		for _, u := range s.unavailable {
			if (userID == "" || u.UserID == userID) && inRange(u.Date, from, to) {
				out = append(out, u)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, err
}

func (r *memRepo) DeleteUnavailability(ctx context.Context, id string) error {
	return r.with(func(s *memState) error {
		delete(s.unavailable, id)
		return nil
	})
}

// Restricted days

func (r *memRepo) CreateRestrictedDay(ctx context.Context, d *models.RestrictedDay) error {
	return r.with(func(s *memState) error {
		for _, existing := range s.restricted {
			if existing.Date.Equal(d.Date) {
				return fmt.Errorf("%w: restricted_days_date_key", repository.ErrDuplicate)
			}
		}
		memID(&d.ID)
		s.restricted[d.ID] = *d
		return nil
	})
}

func (r *memRepo) GetRestrictedDay(ctx context.Context, id string) (*models.RestrictedDay, error) {
	var out *models.RestrictedDay
	err := r.with(func(s *memState) error {
		if d, ok := s.restricted[id]; ok {
			out = &d
		}
		return nil
	})
	return out, err
}

func (r *memRepo) GetRestrictedDayByDate(ctx context.Context, date models.Date) (*models.RestrictedDay, error) {
	var out *models.RestrictedDay
	err := r.with(func(s *memState) error {
		for _, d := range s.restricted {
			if d.Date.Equal(date) {
				d := d
				out = &d
			}
		}
		return nil
	})
	return out, err
}

func (r *memRepo) ListRestrictedDays(ctx context.Context, from, to models.Date) ([]models.RestrictedDay, error) {
	var out []models.RestrictedDay
	err := r.with(func(s *memState) error {
		for _, d := range s.restricted {
			if inRange(d.Date, from, to) {
				out = append(out, d)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, err
}

func (r *memRepo) DeleteRestrictedDay(ctx context.Context, id string) error {
	return r.with(func(s *memState) error {
		delete(s.restricted, id)
		return nil
	})
}

// Requirements

func requirementKey(year, month int) string { return fmt.Sprintf("%04d-%02d", year, month) }

func (r *memRepo) UpsertRequirement(ctx context.Context, req *models.MonthlyRequirement) error {
	return r.with(func(s *memState) error {
		key := requirementKey(req.Year, req.Month)
		if existing, ok := s.requirements[key]; ok {
			req.ID = existing.ID
		}
		memID(&req.ID)
		s.requirements[key] = *req
		return nil
	})
}

func (r *memRepo) GetRequirement(ctx context.Context, year, month int) (*models.MonthlyRequirement, error) {
	var out *models.MonthlyRequirement
	err := r.with(func(s *memState) error {
		if req, ok := s.requirements[requirementKey(year, month)]; ok {
			out = &req
		}
		return nil
	})
	return out, err
}

func (r *memRepo) ListRequirements(ctx context.Context, year int) ([]models.MonthlyRequirement, error) {
	var out []models.MonthlyRequirement
	err := r.with(func(s *memState) error {
		for _, req := range s.requirements {
			if req.Year == year {
				out = append(out, req)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, err
}

// Tasks

func (r *memRepo) CreateTask(ctx context.Context, task *models.Task) error {
	return r.with(func(s *memState) error {
		memID(&task.ID)
		s.tasks[task.ID] = *task
		return nil
	})
}

func (r *memRepo) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var out *models.Task
	err := r.with(func(s *memState) error {
		if t, ok := s.tasks[id]; ok {
			out = &t
		}
		return nil
	})
	return out, err
}

func (r *memRepo) UpdateTask(ctx context.Context, task *models.Task) error {
	return r.with(func(s *memState) error {
		s.tasks[task.ID] = *task
		return nil
	})
}

func (r *memRepo) DeleteTask(ctx context.Context, id string) error {
	return r.with(func(s *memState) error {
		delete(s.tasks, id)
		return nil
	})
}

func (r *memRepo) ListTasks(ctx context.Context, assignedTo string) ([]models.Task, error) {
	var out []models.Task
	err := r.with(func(s *memState) error {
		for _, t := range s.tasks {
			if assignedTo == "" || (t.AssignedTo != nil && *t.AssignedTo == assignedTo) {
				out = append(out, t)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, err
}

// Board

func (r *memRepo) CreatePost(ctx context.Context, post *models.BoardPost) error {
	return r.with(func(s *memState) error {
		memID(&post.ID)
		s.posts[post.ID] = *post
		return nil
	})
}

func (r *memRepo) GetPost(ctx context.Context, id string) (*models.BoardPost, error) {
	var out *models.BoardPost
	err := r.with(func(s *memState) error {
		if p, ok := s.posts[id]; ok {
			out = &p
		}
		return nil
	})
	return out, err
}

func (r *memRepo) UpdatePost(ctx context.Context, post *models.BoardPost) error {
	return r.with(func(s *memState) error {
		s.posts[post.ID] = *post
		return nil
	})
}

func (r *memRepo) DeletePost(ctx context.Context, id string) error {
	return r.with(func(s *memState) error {
		delete(s.posts, id)
		return nil
	})
}

func (r *memRepo) ListActivePosts(ctx context.Context, now time.Time) ([]models.BoardPost, error) {
	var out []models.BoardPost
	err := r.with(func(s *memState) error {
		for _, p := range s.posts {
			if p.IsActive && (p.ExpiresAt == nil || p.ExpiresAt.After(now)) {
				out = append(out, p)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].IsPinned && !out[j].IsPinned })
	return out, err
}

func (r *memRepo) ListUpcomingEvents(ctx context.Context, from models.Date, limit int) ([]models.BoardPost, error) {
	var out []models.BoardPost
	err := r.with(func(s *memState) error {
		for _, p := range s.posts {
			if p.IsActive && p.PostType == "event" && !p.EventDate.IsZero() && !p.EventDate.Before(from) {
				out = append(out, p)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].EventDate.Before(out[j].EventDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

// Notifications

func (r *memRepo) CreateNotification(ctx context.Context, n *models.Notification) error {
	return r.with(func(s *memState) error {
		memID(&n.ID)
		n.CreatedAt = time.Now()
		s.notifications[n.ID] = *n
		return nil
	})
}

func (r *memRepo) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	var out *models.Notification
	err := r.with(func(s *memState) error {
		if n, ok := s.notifications[id]; ok {
			out = &n
		}
		return nil
	})
	return out, err
}

func (r *memRepo) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	var out []models.Notification
	err := r.with(func(s *memState) error {
		for _, n := range s.notifications {
			if n.UserID == userID && (!unreadOnly || !n.IsRead) {
				out = append(out, n)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r *memRepo) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	n := 0
	err := r.with(func(s *memState) error {
		for _, note := range s.notifications {
			if note.UserID == userID && !note.IsRead {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *memRepo) TakePopupNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	var out []models.Notification
	err := r.with(func(s *memState) error {
		for id, n := range s.notifications {
			if n.UserID == userID && n.IsPopup && !n.IsRead {
				n.IsPopup = false
				s.notifications[id] = n
				out = append(out, n)
			}
		}
		return nil
	})
	return out, err
}

func (r *memRepo) MarkNotificationRead(ctx context.Context, id string) error {
	return r.with(func(s *memState) error {
		n := s.notifications[id]
		n.IsRead = true
		s.notifications[id] = n
		return nil
	})
}

func (r *memRepo) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	return r.with(func(s *memState) error {
		for id, n := range s.notifications {
			if n.UserID == userID {
				n.IsRead = true
				s.notifications[id] = n
			}
		}
		return nil
	})
}

// Audit

func (r *memRepo) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	return r.with(func(s *memState) error {
		memID(&entry.ID)
		s.audit = append(s.audit, *entry)
		return nil
	})
}

func (r *memRepo) ListAuditLogs(ctx context.Context, limit, offset int) ([]models.AuditLog, error) {
	var out []models.AuditLog
	err := r.with(func(s *memState) error {
		for i := len(s.audit) - 1; i >= 0; i-- {
			out = append(out, s.audit[i])
		}
		return nil
	})
	if offset >= len(out) {
		return nil, err
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

// Expenses

func (r *memRepo) UpsertExpenseCategory(ctx context.Context, name string) error {
	return r.with(func(s *memState) error {
		for _, c := range s.categories {
			if c.Name == name {
				return nil
			}
		}
		c := models.ExpenseCategory{Name: name, IsActive: true}
		memID(&c.ID)
		s.categories[c.ID] = c
		return nil
	})
}

func (r *memRepo) CreateExpenseCategory(ctx context.Context, c *models.ExpenseCategory) error {
	return r.with(func(s *memState) error {
		for _, existing := range s.categories {
			if existing.Name == c.Name {
				return fmt.Errorf("%w: expense_categories_name_key", repository.ErrDuplicate)
			}
		}
		memID(&c.ID)
		s.categories[c.ID] = *c
		return nil
	})
}

func (r *memRepo) UpdateExpenseCategory(ctx context.Context, c *models.ExpenseCategory) error {
	return r.with(func(s *memState) error {
		s.categories[c.ID] = *c
		return nil
	})
}

func (r *memRepo) ListExpenseCategories(ctx context.Context, activeOnly bool) ([]models.ExpenseCategory, error) {
	var out []models.ExpenseCategory
	err := r.with(func(s *memState) error {
		for _, c := range s.categories {
			if !activeOnly || c.IsActive {
				out = append(out, c)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (r *memRepo) GetExpenseCategory(ctx context.Context, id string) (*models.ExpenseCategory, error) {
	var out *models.ExpenseCategory
	err := r.with(func(s *memState) error {
		if c, ok := s.categories[id]; ok {
			out = &c
		}
		return nil
	})
	return out, err
}

func (r *memRepo) SumExpensesByCategory(ctx context.Context, from, to models.Date, statuses []string) (map[string]int64, error) {
	totals := map[string]int64{}
	err := r.with(func(s *memState) error {
		for _, e := range s.expenses {
			if !inRange(e.ExpenseDate, from, to) {
				continue
			}
			for _, st := range statuses {
				if e.Status == st {
					totals[e.CategoryID] += e.AmountCents
				}
			}
		}
		return nil
	})
	return totals, err
}

func (r *memRepo) CreateExpense(ctx context.Context, e *models.Expense) error {
	return r.with(func(s *memState) error {
		memID(&e.ID)
		s.expenses[e.ID] = *e
		return nil
	})
}

func (r *memRepo) GetExpenseForUpdate(ctx context.Context, id string) (*models.Expense, error) {
	var out *models.Expense
	err := r.with(func(s *memState) error {
		if e, ok := s.expenses[id]; ok {
			out = &e
		}
		return nil
	})
	return out, err
}

func (r *memRepo) UpdateExpense(ctx context.Context, e *models.Expense) error {
	return r.with(func(s *memState) error {
		s.expenses[e.ID] = *e
		return nil
	})
}

func (r *memRepo) ListExpenses(ctx context.Context, userID string) ([]models.Expense, error) {
	var out []models.Expense
	err := r.with(func(s *memState) error {
		for _, e := range s.expenses {
			if userID == "" || e.UserID == userID {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

// test accessors

func (r *memRepo) allocation(userID, leaveTypeID string, year int) models.LeaveAllocation {
	var out models.LeaveAllocation
	_ = r.with(func(s *memState) error {
		out, _ = findAllocation(s, userID, leaveTypeID, year)
		return nil
	})
	return out
}

func (r *memRepo) auditActions() []string {
	var out []string
	_ = r.with(func(s *memState) error {
		for _, e := range s.audit {
			out = append(out, e.Action)
		}
		return nil
	})
	return out
}

func (r *memRepo) notificationsFor(userID string) []models.Notification {
	out, _ := r.ListNotifications(context.Background(), userID, false, 0)
	return out
}
