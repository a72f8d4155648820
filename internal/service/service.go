package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rongwang/staff-scheduler/internal/config"
	"github.com/rongwang/staff-scheduler/internal/models"
	"github.com/rongwang/staff-scheduler/internal/repository"
	"github.com/rongwang/staff-scheduler/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

// Service defines all the business logic operations
type Service interface {
	// Authentication
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	Me(ctx context.Context, userID string) (*models.MeResponse, error)
	SeedDefaults(ctx context.Context) error

	// Leave requests and allocations
	RequestLeave(ctx context.Context, actorID string, req models.CreateLeaveRequest) (*models.LeaveRequestResponse, error)
	ApproveLeave(ctx context.Context, actorID, requestID, notes string) (*models.LeaveRequest, error)
	RejectLeave(ctx context.Context, actorID, requestID, notes string) (*models.LeaveRequest, error)
	WithdrawLeave(ctx context.Context, actorID, requestID string) error
	RevokeLeave(ctx context.Context, actorID, requestID string) error
	ListMyLeave(ctx context.Context, actorID string, year int) ([]models.LeaveRequest, error)
	ListLeaveRequests(ctx context.Context, actorID string, status models.LeaveStatus) ([]models.LeaveRequest, error)
	PendingLeaveCount(ctx context.Context, actorID string) (int, error)
	LeaveBalance(ctx context.Context, actorID, userID string, year int) ([]models.LeaveBalance, error)
	SetAllocation(ctx context.Context, actorID string, req models.SetAllocationRequest) (*models.LeaveAllocation, error)
	ListAllocations(ctx context.Context, actorID string, year int) ([]models.LeaveAllocation, error)

	// Leave types
	ListLeaveTypes(ctx context.Context, actorID string, includeInactive bool) ([]models.LeaveType, error)
	CreateLeaveType(ctx context.Context, actorID string, req models.LeaveTypeRequest) (*models.LeaveType, error)
	UpdateLeaveType(ctx context.Context, actorID, id string, req models.LeaveTypeRequest) (*models.LeaveType, error)
	DeactivateLeaveType(ctx context.Context, actorID, id string) error

	// Scheduling
	CreateSchedule(ctx context.Context, actorID string, req models.ScheduleRequest) (*models.Schedule, error)
	UpdateSchedule(ctx context.Context, actorID, id string, req models.ScheduleRequest) (*models.Schedule, error)
	DeleteSchedule(ctx context.Context, actorID, id string) error
	BulkAssign(ctx context.Context, actorID string, req models.BulkAssignRequest) (*models.BulkAssignResponse, error)
	ListSchedules(ctx context.Context, actorID, userID string, from, to models.Date) ([]models.Schedule, error)
	CheckSchedule(ctx context.Context, actorID string, req models.ScheduleRequest) error
	MonthCalendar(ctx context.Context, actorID, userID string, year, month int) (*models.MonthCalendar, error)
	AddUnavailability(ctx context.Context, actorID string, req models.UnavailabilityRequest) (*models.Unavailability, error)
	ListUnavailability(ctx context.Context, actorID, userID string, from, to models.Date) ([]models.Unavailability, error)
	DeleteUnavailability(ctx context.Context, actorID, id string) error
	AddRestrictedDay(ctx context.Context, actorID string, req models.RestrictedDayRequest) (*models.RestrictedDay, error)
	ListRestrictedDays(ctx context.Context, actorID string, year int) ([]models.RestrictedDay, error)
	DeleteRestrictedDay(ctx context.Context, actorID, id string) error

	// Monthly requirements and reporting
	SetRequirement(ctx context.Context, actorID string, req models.SetRequirementRequest) (*models.MonthlyRequirement, error)
	ListRequirements(ctx context.Context, actorID string, year int) ([]models.MonthlyRequirement, error)
	Summarize(ctx context.Context, actorID, userID string, year, month int) (*models.RequirementSummary, error)
	AttendanceReport(ctx context.Context, actorID string, year, month int) (*models.AttendanceReport, error)

	// Users, roles and audit
	ListUsers(ctx context.Context, actorID string) ([]models.User, error)
	CreateUser(ctx context.Context, actorID string, req models.CreateUserRequest) (*models.User, error)
	UpdateUser(ctx context.Context, actorID, userID string, req models.UpdateUserRequest) (*models.User, error)
	ListRoles(ctx context.Context, actorID string) ([]models.Role, error)
	SetUserRoles(ctx context.Context, actorID, userID string, req models.SetUserRolesRequest) error
	ListAuditLogs(ctx context.Context, actorID string, limit, offset int) ([]models.AuditLog, error)

	// Tasks
	CreateTask(ctx context.Context, actorID string, req models.CreateTaskRequest) (*models.TaskView, error)
	ListTasks(ctx context.Context, actorID string, all bool) ([]models.TaskView, error)
	GetTask(ctx context.Context, actorID, id string) (*models.TaskView, error)
	UpdateTaskStatus(ctx context.Context, actorID, id, status string) (*models.TaskView, error)
	DeleteTask(ctx context.Context, actorID, id string) error

	// Board
	ListPosts(ctx context.Context, actorID string) ([]models.BoardPost, error)
	UpcomingEvents(ctx context.Context, actorID string) ([]models.BoardPost, error)
	CreatePost(ctx context.Context, actorID string, req models.CreatePostRequest) (*models.BoardPost, error)
	TogglePin(ctx context.Context, actorID, id string) (*models.BoardPost, error)
	DeletePost(ctx context.Context, actorID, id string) error

	// Notifications
	ListNotifications(ctx context.Context, actorID string, unreadOnly bool, limit int) ([]models.Notification, error)
	UnreadNotificationCount(ctx context.Context, actorID string) (int, error)
	PopupNotifications(ctx context.Context, actorID string) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, actorID, id string) error
	MarkAllNotificationsRead(ctx context.Context, actorID string) error

	// Expenses
	ListExpenseCategories(ctx context.Context, actorID string, all bool) ([]models.ExpenseCategory, error)
	CreateExpenseCategory(ctx context.Context, actorID string, req models.CreateExpenseCategoryRequest) (*models.ExpenseCategory, error)
	ToggleExpenseCategory(ctx context.Context, actorID, id string) (*models.ExpenseCategory, error)
	SetCategoryBudget(ctx context.Context, actorID, id string, budgetCents *int64) (*models.ExpenseCategory, error)
	BudgetReport(ctx context.Context, actorID string, year, month int) (*models.BudgetReport, error)
	SubmitExpense(ctx context.Context, actorID string, req models.SubmitExpenseRequest) (*models.Expense, error)
	ListExpenses(ctx context.Context, actorID string, all bool) ([]models.Expense, error)
	ApproveExpense(ctx context.Context, actorID, id string) (*models.Expense, error)
	RejectExpense(ctx context.Context, actorID, id, reason string) (*models.Expense, error)
	ReimburseExpense(ctx context.Context, actorID, id string) (*models.Expense, error)
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo               repository.Repository
	emitter            Emitter
	logger             *utils.Logger
	ledger             Ledger
	checker            ConflictChecker
	jwtSecret          []byte
	tokenDuration      time.Duration
	defaultAllocations map[string]float64
	now                func() time.Time
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(repo repository.Repository, emitter Emitter, logger *utils.Logger, cfg *config.Config) Service {
	if logger == nil {
		logger = utils.Discard()
	}
	return &DefaultService{
		repo:               repo,
		emitter:            emitter,
		logger:             logger,
		jwtSecret:          []byte(cfg.Auth.JWTSecret),
		tokenDuration:      cfg.Auth.TokenTTL,
		defaultAllocations: cfg.Leave.DefaultAllocations,
		now:                func() time.Time { return time.Now().UTC() },
	}
}

// actor is an authenticated user with resolved permissions
type actor struct {
	user  *models.User
	perms map[models.Permission]bool
}

func (a *actor) can(p models.Permission) bool {
	return a.user.IsFirstAccount || a.perms[p]
}

func (a *actor) require(p models.Permission) error {
	if !a.can(p) {
		return permissionDenied(p)
	}
	return nil
}

func (a *actor) id() string { return a.user.ID }

// loadActor resolves the caller and its permission set
func (s *DefaultService) loadActor(ctx context.Context, userID string) (*actor, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, ErrUnauthorized
	}

	perms, err := s.repo.GetUserPermissions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error resolving permissions: %w", err)
	}

	a := &actor{user: user, perms: make(map[models.Permission]bool, len(perms))}
	for _, p := range perms {
		a.perms[p] = true
	}
	return a, nil
}

// authorize loads the caller and checks it holds perm
func (s *DefaultService) authorize(ctx context.Context, userID string, perm models.Permission) (*actor, error) {
	a, err := s.loadActor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := a.require(perm); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *DefaultService) emit(ctx context.Context, events ...Event) {
	if s.emitter == nil {
		return
	}
	for _, ev := range events {
		if ev.OccurredAt.IsZero() {
			ev.OccurredAt = s.now()
		}
		s.emitter.Emit(ctx, ev)
	}
}

func (s *DefaultService) today() models.Date {
	return models.DateOf(s.now())
}

// wrapRepoError maps repository errors onto the service taxonomy
func wrapRepoError(action string, err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	}
	return fmt.Errorf("error %s: %w", action, err)
}

// Authentication methods
func (s *DefaultService) SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error) {
	// Check if user already exists
	existingUser, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error checking user existence: %w", err)
	}

	if existingUser != nil {
		return nil, fmt.Errorf("%w: user with this email already exists", ErrAlreadyExists)
	}

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		ID:         uuid.New().String(),
		Email:      req.Email,
		Password:   string(hashedPassword),
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Phone:      req.Phone,
		Department: req.Department,
		IsActive:   true,
	}

	// The first account ever created becomes the super administrator. Two
	// concurrent first sign-ups both see an empty table; the unique index on
	// is_first_account rejects the second, which retries as a regular user.
	for attempt := 0; ; attempt++ {
		err = s.repo.InTx(ctx, func(repo repository.Repository) error {
			count, err := repo.CountUsers(ctx)
			if err != nil {
				return fmt.Errorf("error counting users: %w", err)
			}
			user.IsFirstAccount = count == 0

			if err := repo.CreateUser(ctx, user); err != nil {
				return err
			}

			roleName := models.RoleUser
			if user.IsFirstAccount {
				roleName = models.RoleAdministrator
			}
			return s.onboardUser(ctx, repo, user, []string{roleName}, nil)
		})
		if err == nil {
			break
		}
		if attempt == 0 && user.IsFirstAccount && errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		return nil, wrapRepoError("creating user", err)
	}

	s.emit(ctx, Event{
		ActorID:    user.ID,
		Action:     "user.signup",
		EntityType: "user",
		EntityID:   user.ID,
		Details:    map[string]interface{}{"email": user.Email, "firstAccount": user.IsFirstAccount},
		Notify: &NotificationSpec{
			UserIDs: []string{user.ID},
			Title:   "Welcome!",
			Message: fmt.Sprintf("Welcome, %s. Your account is ready.", user.FirstName),
			Type:    "success",
			Popup:   true,
		},
	})

	return &models.AuthResponse{
		Status:  "success",
		UserID:  user.ID,
		Email:   user.Email,
		Name:    user.FullName(),
		IsAdmin: user.IsFirstAccount,
	}, nil
}

// onboardUser assigns roles (by name or id) and grants the default yearly allocations
func (s *DefaultService) onboardUser(ctx context.Context, repo repository.Repository, user *models.User, roleNames, roleIDs []string) error {
	ids := append([]string{}, roleIDs...)
	for _, name := range roleNames {
		role, err := repo.GetRoleByName(ctx, name)
		if err != nil {
			return fmt.Errorf("error getting role %s: %w", name, err)
		}
		if role == nil {
			return fmt.Errorf("role %s has not been seeded", name)
		}
		ids = append(ids, role.ID)
	}
	if err := repo.SetUserRoles(ctx, user.ID, ids); err != nil {
		return fmt.Errorf("error assigning roles: %w", err)
	}

	year := s.now().Year()
	for typeName, days := range s.defaultAllocations {
		lt, err := repo.GetLeaveTypeByName(ctx, typeName)
		if err != nil {
			return fmt.Errorf("error getting leave type %s: %w", typeName, err)
		}
		if lt == nil || !lt.IsActive {
			continue
		}
		alloc, err := s.ledger.GetOrCreate(ctx, repo, user.ID, lt.ID, year)
		if err != nil {
			return err
		}
		if err := s.ledger.SetAllocated(ctx, repo, alloc, days, alloc.AllocatedHours); err != nil {
			return err
		}
	}
	return nil
}

func (s *DefaultService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	// Get the user
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	if user == nil {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}

	if !user.IsActive {
		return nil, fmt.Errorf("%w: account is deactivated", ErrUnauthorized)
	}

	if err := s.repo.TouchLastLogin(ctx, user.ID, s.now()); err != nil {
		s.logger.Warnf("failed to record last login for %s: %v", user.ID, err)
	}

	// Generate JWT token
	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResponse{
		Status:    "success",
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.FullName(),
		IsAdmin:   user.IsFirstAccount,
		Token:     token,
		ExpiresIn: int(s.tokenDuration.Seconds()),
	}, nil
}

func (s *DefaultService) Me(ctx context.Context, userID string) (*models.MeResponse, error) {
	a, err := s.loadActor(ctx, userID)
	if err != nil {
		return nil, err
	}

	roles, err := s.repo.GetUserRoles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting roles: %w", err)
	}

	resp := &models.MeResponse{
		Status:      "success",
		User:        a.user,
		Roles:       make([]string, 0, len(roles)),
		Permissions: make([]models.Permission, 0, len(models.PermissionCatalogue)),
	}
	for _, r := range roles {
		resp.Roles = append(resp.Roles, r.Name)
	}
	for _, def := range models.PermissionCatalogue {
		if a.can(def.Code) {
			resp.Permissions = append(resp.Permissions, def.Code)
		}
	}
	return resp, nil
}

// SeedDefaults makes sure the permission catalogue, system roles, leave
// types and expense categories exist. It is safe to run on every start.
func (s *DefaultService) SeedDefaults(ctx context.Context) error {
	return s.repo.InTx(ctx, func(repo repository.Repository) error {
		all := make([]models.Permission, 0, len(models.PermissionCatalogue))
		for _, def := range models.PermissionCatalogue {
			if err := repo.UpsertPermission(ctx, def); err != nil {
				return fmt.Errorf("error seeding permission %s: %w", def.Code, err)
			}
			all = append(all, def.Code)
		}

		for _, def := range models.DefaultRoles {
			role, err := repo.GetRoleByName(ctx, def.Name)
			if err != nil {
				return fmt.Errorf("error getting role %s: %w", def.Name, err)
			}
			if role == nil {
				role = &models.Role{Name: def.Name, Description: def.Description, IsSystem: true}
				if err := repo.CreateRole(ctx, role); err != nil {
					return fmt.Errorf("error seeding role %s: %w", def.Name, err)
				}
			}
			perms := def.Permissions
			if perms == nil {
				perms = all
			}
			if err := repo.SetRolePermissions(ctx, role.ID, perms); err != nil {
				return fmt.Errorf("error seeding permissions for %s: %w", def.Name, err)
			}
		}

		for _, def := range models.DefaultLeaveTypes {
			existing, err := repo.GetLeaveTypeByName(ctx, def.Name)
			if err != nil {
				return fmt.Errorf("error getting leave type %s: %w", def.Name, err)
			}
			if existing != nil {
				continue
			}
			lt := &models.LeaveType{
				Name:        def.Name,
				Description: def.Description,
				IsPaid:      def.IsPaid,
				Color:       def.Color,
				IsActive:    true,
			}
			if err := repo.CreateLeaveType(ctx, lt); err != nil {
				return fmt.Errorf("error seeding leave type %s: %w", def.Name, err)
			}
		}

		for _, name := range models.DefaultExpenseCategories {
			if err := repo.UpsertExpenseCategory(ctx, name); err != nil {
				return fmt.Errorf("error seeding expense category %s: %w", name, err)
			}
		}
		return nil
	})
}

// Helper methods
func (s *DefaultService) generateJWT(user *models.User) (string, error) {
	expirationTime := s.now().Add(s.tokenDuration)

	claims := jwt.MapClaims{
		"sub": user.ID, // subject
		"exp": expirationTime.Unix(),
		"iat": s.now().Unix(), // issued at
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
