package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rongwang/staff-scheduler/internal/models"
	"github.com/rongwang/staff-scheduler/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 500
	defaultLeaveColor    = "#3B82F6"
)

// Users

func (s *DefaultService) ListUsers(ctx context.Context, actorID string) ([]models.User, error) {
	if _, err := s.authorize(ctx, actorID, models.PermUsersView); err != nil {
		return nil, err
	}

	users, err := s.repo.ListUsers(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	return users, nil
}

// CreateUser adds an account on behalf of an administrator. Without explicit
// roles the user gets the default User role.
func (s *DefaultService) CreateUser(ctx context.Context, actorID string, req models.CreateUserRequest) (*models.User, error) {
	a, err := s.authorize(ctx, actorID, models.PermUsersCreate)
	if err != nil {
		return nil, err
	}
	if len(req.RoleIDs) > 0 {
		if err := a.require(models.PermRolesManage); err != nil {
			return nil, err
		}
	}

	existing, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error checking user existence: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: user with this email already exists", ErrAlreadyExists)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		Email:      req.Email,
		Password:   string(hashedPassword),
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Phone:      req.Phone,
		Department: req.Department,
		IsActive:   true,
	}

	err = s.repo.InTx(ctx, func(repo repository.Repository) error {
		for _, id := range req.RoleIDs {
			role, err := repo.GetRoleByID(ctx, id)
			if err != nil {
				return fmt.Errorf("error getting role: %w", err)
			}
			if role == nil {
				return notFound("role " + id)
			}
		}
		if err := repo.CreateUser(ctx, user); err != nil {
			return wrapRepoError("creating user", err)
		}

		var roleNames []string
		if len(req.RoleIDs) == 0 {
			roleNames = []string{models.RoleUser}
		}
		return s.onboardUser(ctx, repo, user, roleNames, req.RoleIDs)
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, Event{
		ActorID:    a.id(),
		Action:     "user.created",
		EntityType: "user",
		EntityID:   user.ID,
		Details:    map[string]interface{}{"email": user.Email, "roleIds": req.RoleIDs},
		Notify: &NotificationSpec{
			UserIDs: []string{user.ID},
			Title:   "Welcome!",
			Message: fmt.Sprintf("Welcome, %s. An administrator has created your account.", user.FirstName),
			Type:    "success",
			Popup:   true,
		},
	})
	return user, nil
}

func (s *DefaultService) UpdateUser(ctx context.Context, actorID, userID string, req models.UpdateUserRequest) (*models.User, error) {
	a, err := s.authorize(ctx, actorID, models.PermUsersEdit)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, notFound("user")
	}

	changes := map[string]interface{}{}
	if req.FirstName != nil && strings.TrimSpace(*req.FirstName) != "" {
		user.FirstName = strings.TrimSpace(*req.FirstName)
		changes["firstName"] = user.FirstName
	}
	if req.LastName != nil && strings.TrimSpace(*req.LastName) != "" {
		user.LastName = strings.TrimSpace(*req.LastName)
		changes["lastName"] = user.LastName
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
		changes["phone"] = user.Phone
	}
	if req.Department != nil {
		user.Department = strings.TrimSpace(*req.Department)
		changes["department"] = user.Department
	}
	if req.IsActive != nil {
		if !*req.IsActive && (user.ID == a.id() || user.IsFirstAccount) {
			return nil, validationError("this account cannot be deactivated")
		}
		user.IsActive = *req.IsActive
		changes["isActive"] = user.IsActive
	}

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("error updating user: %w", err)
	}

	s.emit(ctx, Event{
		ActorID:    a.id(),
		Action:     "user.updated",
		EntityType: "user",
		EntityID:   user.ID,
		Details:    changes,
	})
	return user, nil
}

// Roles

func (s *DefaultService) ListRoles(ctx context.Context, actorID string) ([]models.Role, error) {
	if _, err := s.authorize(ctx, actorID, models.PermUsersView); err != nil {
		return nil, err
	}

	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing roles: %w", err)
	}
	for i := range roles {
		perms, err := s.repo.GetRolePermissions(ctx, roles[i].ID)
		if err != nil {
			return nil, fmt.Errorf("error listing role permissions: %w", err)
		}
		roles[i].Permissions = perms
	}
	return roles, nil
}

func (s *DefaultService) SetUserRoles(ctx context.Context, actorID, userID string, req models.SetUserRolesRequest) error {
	a, err := s.authorize(ctx, actorID, models.PermRolesManage)
	if err != nil {
		return err
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return notFound("user")
	}

	err = s.repo.InTx(ctx, func(repo repository.Repository) error {
		for _, id := range req.RoleIDs {
			role, err := repo.GetRoleByID(ctx, id)
			if err != nil {
				return fmt.Errorf("error getting role: %w", err)
			}
			if role == nil {
				return notFound("role " + id)
			}
		}
		return repo.SetUserRoles(ctx, user.ID, req.RoleIDs)
	})
	if err != nil {
		return err
	}

	s.emit(ctx, Event{
		ActorID:    a.id(),
		Action:     "user.roles_changed",
		EntityType: "user",
		EntityID:   user.ID,
		Details:    map[string]interface{}{"roleIds": req.RoleIDs},
	})
	return nil
}

// Leave types

func (s *DefaultService) ListLeaveTypes(ctx context.Context, actorID string, includeInactive bool) ([]models.LeaveType, error) {
	a, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if includeInactive {
		if err := a.require(models.PermManageSettings); err != nil {
			return nil, err
		}
	}

	types, err := s.repo.ListLeaveTypes(ctx, !includeInactive)
	if err != nil {
		return nil, fmt.Errorf("error listing leave types: %w", err)
	}
	return types, nil
}

func (s *DefaultService) CreateLeaveType(ctx context.Context, actorID string, req models.LeaveTypeRequest) (*models.LeaveType, error) {
	a, err := s.authorize(ctx, actorID, models.PermManageSettings)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validationError("name is required")
	}
	existing, err := s.repo.GetLeaveTypeByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("error checking leave type: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: leave type %s", ErrAlreadyExists, name)
	}

	lt := &models.LeaveType{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		IsPaid:      req.IsPaid == nil || *req.IsPaid,
		Color:       req.Color,
		IsActive:    true,
	}
	if lt.Color == "" {
		lt.Color = defaultLeaveColor
	}
	if err := s.repo.CreateLeaveType(ctx, lt); err != nil {
		return nil, wrapRepoError("creating leave type", err)
	}

	s.emit(ctx, Event{
		ActorID:    a.id(),
		Action:     "leave_type.created",
		EntityType: "leave_type",
		EntityID:   lt.ID,
		Details:    map[string]interface{}{"name": lt.Name, "paid": lt.IsPaid},
	})
	return lt, nil
}

func (s *DefaultService) UpdateLeaveType(ctx context.Context, actorID, id string, req models.LeaveTypeRequest) (*models.LeaveType, error) {
	a, err := s.authorize(ctx, actorID, models.PermManageSettings)
	if err != nil {
		return nil, err
	}

	lt, err := s.repo.GetLeaveType(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting leave type: %w", err)
	}
	if lt == nil {
		return nil, notFound("leave type")
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		lt.Name = name
	}
	lt.Description = strings.TrimSpace(req.Description)
	if req.IsPaid != nil {
		lt.IsPaid = *req.IsPaid
	}
	if req.Color != "" {
		lt.Color = req.Color
	}
	if req.IsActive != nil {
		lt.IsActive = *req.IsActive
	}
	if err := s.repo.UpdateLeaveType(ctx, lt); err != nil {
		return nil, wrapRepoError("updating leave type", err)
	}

	s.emit(ctx, Event{
		ActorID:    a.id(),
		Action:     "leave_type.updated",
		EntityType: "leave_type",
		EntityID:   lt.ID,
		Details:    map[string]interface{}{"name": lt.Name, "active": lt.IsActive},
	})
	return lt, nil
}

// DeactivateLeaveType hides a leave type from new requests. Existing
// requests and allocations keep referring to it.
func (s *DefaultService) DeactivateLeaveType(ctx context.Context, actorID, id string) error {
	inactive := false
	_, err := s.UpdateLeaveType(ctx, actorID, id, models.LeaveTypeRequest{IsActive: &inactive})
	return err
}

// Audit

func (s *DefaultService) ListAuditLogs(ctx context.Context, actorID string, limit, offset int) ([]models.AuditLog, error) {
	if _, err := s.authorize(ctx, actorID, models.PermManageSettings); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultAuditPageSize
	}
	if limit > maxAuditPageSize {
		limit = maxAuditPageSize
	}
	if offset < 0 {
		offset = 0
	}

	logs, err := s.repo.ListAuditLogs(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("error listing audit logs: %w", err)
	}
	return logs, nil
}
