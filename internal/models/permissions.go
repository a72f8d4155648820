package models

// Permission is a capability code gating an operation
type Permission string

const (
	PermScheduleViewOwn          Permission = "schedule.view_own"
	PermScheduleViewAll          Permission = "schedule.view_all"
	PermScheduleCreate           Permission = "schedule.create"
	PermScheduleEdit             Permission = "schedule.edit"
	PermScheduleDelete           Permission = "schedule.delete"
	PermScheduleOverrideRestrict Permission = "schedule.override_restricted"

	PermLeaveRequest  Permission = "leave.request"
	PermLeaveViewOwn  Permission = "leave.view_own"
	PermLeaveViewAll  Permission = "leave.view_all"
	PermLeaveApprove  Permission = "leave.approve"
	PermLeaveAllocate Permission = "leave.allocate"

	PermUsersView   Permission = "users.view"
	PermUsersCreate Permission = "users.create"
	PermUsersEdit   Permission = "users.edit"
	PermRolesManage Permission = "roles.manage"

	PermTasksViewOwn Permission = "tasks.view_own"
	PermTasksViewAll Permission = "tasks.view_all"
	PermTasksCreate  Permission = "tasks.create"
	PermTasksEdit    Permission = "tasks.edit"
	PermTasksDelete  Permission = "tasks.delete"

	PermBoardView   Permission = "board.view"
	PermBoardCreate Permission = "board.create"
	PermBoardDelete Permission = "board.delete"
	PermBoardPin    Permission = "board.pin"

	PermManageRestricted   Permission = "management.restricted"
	PermManageRequirements Permission = "management.requirements"
	PermManageReports      Permission = "management.reports"
	PermManageSettings     Permission = "management.settings"

	PermFinanceView           Permission = "finance.view"
	PermFinanceExpenseSubmit  Permission = "finance.expenses.submit"
	PermFinanceExpenseApprove Permission = "finance.expenses.approve"
	PermFinanceManage         Permission = "finance.manage"
)

// PermissionDef describes a seeded permission
type PermissionDef struct {
	Code        Permission `db:"code" json:"code"`
	Name        string     `db:"name" json:"name"`
	Description string     `db:"description" json:"description"`
	Category    string     `db:"category" json:"category"`
}

// PermissionCatalogue is the full list of permissions known to the system
var PermissionCatalogue = []PermissionDef{
	{PermScheduleViewOwn, "View Own Schedule", "View own work schedule", "scheduling"},
	{PermScheduleViewAll, "View All Schedules", "View all user schedules", "scheduling"},
	{PermScheduleCreate, "Create Schedule", "Create/assign schedules", "scheduling"},
	{PermScheduleEdit, "Edit Schedule", "Edit schedules", "scheduling"},
	{PermScheduleDelete, "Delete Schedule", "Delete schedules", "scheduling"},
	{PermScheduleOverrideRestrict, "Override Restricted Days", "Schedule shifts on restricted days", "scheduling"},

	{PermLeaveRequest, "Request Leave", "Submit leave requests", "leave"},
	{PermLeaveViewOwn, "View Own Leave", "View own leave balance and requests", "leave"},
	{PermLeaveViewAll, "View All Leave", "View all leave requests", "leave"},
	{PermLeaveApprove, "Approve Leave", "Approve/reject leave requests", "leave"},
	{PermLeaveAllocate, "Manage Allocations", "Manage leave allocations", "leave"},

	{PermUsersView, "View Users", "View user list", "admin"},
	{PermUsersCreate, "Create Users", "Create new users", "admin"},
	{PermUsersEdit, "Edit Users", "Edit user details", "admin"},
	{PermRolesManage, "Manage Roles", "Assign roles to users", "admin"},

	{PermTasksViewOwn, "View Own Tasks", "View tasks assigned to self", "tasks"},
	{PermTasksViewAll, "View All Tasks", "View all tasks", "tasks"},
	{PermTasksCreate, "Create Tasks", "Create and assign tasks", "tasks"},
	{PermTasksEdit, "Edit Tasks", "Edit tasks", "tasks"},
	{PermTasksDelete, "Delete Tasks", "Delete tasks", "tasks"},

	{PermBoardView, "View Board", "View public board", "board"},
	{PermBoardCreate, "Create Posts", "Create board posts", "board"},
	{PermBoardDelete, "Delete Posts", "Delete board posts", "board"},
	{PermBoardPin, "Pin Posts", "Pin/unpin board posts", "board"},

	{PermManageRestricted, "Manage Restricted Days", "Manage restricted days", "management"},
	{PermManageRequirements, "Manage Requirements", "Set monthly requirements", "management"},
	{PermManageReports, "View Reports", "View system reports", "management"},
	{PermManageSettings, "System Settings", "Manage leave types and audit log", "management"},

	{PermFinanceView, "View Finance", "View expenses", "finance"},
	{PermFinanceExpenseSubmit, "Submit Expenses", "Submit expense claims", "finance"},
	{PermFinanceExpenseApprove, "Approve Expenses", "Approve, reject and reimburse expenses", "finance"},
	{PermFinanceManage, "Manage Finance", "Manage expense categories and budgets", "finance"},
}

// System role names
const (
	RoleAdministrator = "Administrator"
	RoleManager       = "Manager"
	RoleUser          = "User"
)

// RoleDef describes a seeded system role. A nil Permissions slice means every permission.
type RoleDef struct {
	Name        string
	Description string
	Permissions []Permission
}

// DefaultRoles are created on first start
var DefaultRoles = []RoleDef{
	{Name: RoleAdministrator, Description: "Full system access"},
	{
		Name:        RoleManager,
		Description: "Manage schedules, leave, and tasks",
		Permissions: []Permission{
			PermScheduleViewOwn, PermScheduleViewAll, PermScheduleCreate, PermScheduleEdit,
			PermLeaveRequest, PermLeaveViewOwn, PermLeaveViewAll, PermLeaveApprove,
			PermUsersView, PermTasksViewOwn, PermTasksViewAll, PermTasksCreate, PermTasksEdit,
			PermBoardView, PermBoardCreate, PermBoardPin,
			PermManageRestricted, PermManageRequirements, PermManageReports,
			PermFinanceView, PermFinanceExpenseSubmit,
		},
	},
	{
		Name:        RoleUser,
		Description: "Basic user access",
		Permissions: []Permission{
			PermScheduleViewOwn, PermLeaveRequest, PermLeaveViewOwn,
			PermTasksViewOwn, PermBoardView, PermFinanceView, PermFinanceExpenseSubmit,
		},
	},
}

// LeaveTypeDef describes a seeded leave type
type LeaveTypeDef struct {
	Name        string
	Description string
	IsPaid      bool
	Color       string
}

// DefaultLeaveTypes are created on first start
var DefaultLeaveTypes = []LeaveTypeDef{
	{"Annual Leave", "Paid annual vacation days", true, "#10B981"},
	{"Sick Leave", "Paid sick days", true, "#EF4444"},
	{"Personal Leave", "Personal time off", true, "#8B5CF6"},
	{"Unpaid Leave", "Unpaid time off", false, "#6B7280"},
	{"Bereavement", "Compassionate leave", true, "#1F2937"},
	{"Maternity/Paternity", "Parental leave", true, "#EC4899"},
}

// DefaultExpenseCategories are created on first start
var DefaultExpenseCategories = []string{"Travel", "Meals", "Supplies", "Training", "Other"}
