package rbac

import "sort"

// Action names an operation a caller wants to perform.
type Action string

// Declared actions.
const (
	ActionCreateUser = Action("create_user")
	ActionReadUser   = Action("read_user")
	ActionUpdateUser = Action("update_user")
	ActionDeleteUser = Action("delete_user")

	ActionCreateTicket      = Action("create_ticket")
	ActionReadTicket        = Action("read_ticket")
	ActionReadAllTicket     = Action("read_all_ticket")
	ActionUpdateTicket      = Action("update_ticket")
	ActionDeleteTicket      = Action("delete_ticket")
	ActionRestoreTicket     = Action("restore_ticket")
	ActionViewDeletedTicket = Action("view_deleted_ticket")
	ActionAssignTicket      = Action("assign_ticket")
	ActionGetAssignment     = Action("get_assignment")
	ActionChangeStatus      = Action("change_status")
	ActionSolveProblem      = Action("solve_problem")

	ActionCreateProject  = Action("create_project")
	ActionReadProject    = Action("read_project")
	ActionReadAllProject = Action("read_all_project")

	ActionManageCategory     = Action("manage_category")
	ActionManageStatus       = Action("manage_status")
	ActionRateSatisfaction   = Action("rate_satisfaction")
	ActionManageCustomer     = Action("manage_customer")
	ActionGetAllMasterFilter = Action("get_all_master_filter")
)

// Role ids seeded by migration 000001.
const (
	RoleCreateTicket       int64 = 1
	RoleReadTicket         int64 = 2
	RoleReadAllTicket      int64 = 3
	RoleUpdateTicket       int64 = 4
	RoleDeleteTicket       int64 = 5
	RoleRestoreTicket      int64 = 6
	RoleViewDeletedTicket  int64 = 7
	RoleAssignTicket       int64 = 8
	RoleGetAssignment      int64 = 9
	RoleChangeStatus       int64 = 10
	RoleSolveProblem       int64 = 11
	RoleCreateProject      int64 = 12
	RoleReadProject        int64 = 13
	RoleReadAllProject     int64 = 14
	RoleCreateUser         int64 = 15
	RoleDeleteUser         int64 = 16
	RoleReadUser           int64 = 17
	RoleUpdateUser         int64 = 18
	RoleManageCategory     int64 = 19
	RoleManageStatus       int64 = 20
	RoleRateSatisfaction   int64 = 21
	RoleManageCustomer     int64 = 22
	RoleGetAllMasterFilter int64 = 23
)

// DefaultPolicies binds every declared action to the roles that qualify for it.
func DefaultPolicies() map[Action][]int64 {
	return map[Action][]int64{
		ActionCreateUser: {RoleCreateUser},
		ActionReadUser:   {RoleReadUser, RoleUpdateUser},
		ActionUpdateUser: {RoleUpdateUser},
		ActionDeleteUser: {RoleDeleteUser},

		ActionCreateTicket:      {RoleCreateTicket},
		ActionReadTicket:        {RoleReadTicket, RoleReadAllTicket},
		ActionReadAllTicket:     {RoleReadAllTicket},
		ActionUpdateTicket:      {RoleUpdateTicket},
		ActionDeleteTicket:      {RoleDeleteTicket},
		ActionRestoreTicket:     {RoleRestoreTicket},
		ActionViewDeletedTicket: {RoleViewDeletedTicket, RoleRestoreTicket},
		ActionAssignTicket:      {RoleAssignTicket},
		ActionGetAssignment:     {RoleGetAssignment, RoleAssignTicket},
		ActionChangeStatus:      {RoleChangeStatus},
		ActionSolveProblem:      {RoleSolveProblem},

		ActionCreateProject:  {RoleCreateProject},
		ActionReadProject:    {RoleReadProject, RoleReadAllProject},
		ActionReadAllProject: {RoleReadAllProject},

		ActionManageCategory:     {RoleManageCategory},
		ActionManageStatus:       {RoleManageStatus},
		ActionRateSatisfaction:   {RoleRateSatisfaction},
		ActionManageCustomer:     {RoleManageCustomer},
		ActionGetAllMasterFilter: {RoleGetAllMasterFilter, RoleReadAllTicket, RoleReadAllProject},
	}
}

// AllActions lists every declared action in name order.
func AllActions() []Action {
	actions := []Action{
		ActionCreateUser, ActionReadUser, ActionUpdateUser, ActionDeleteUser,
		ActionCreateTicket, ActionReadTicket, ActionReadAllTicket, ActionUpdateTicket,
		ActionDeleteTicket, ActionRestoreTicket, ActionViewDeletedTicket, ActionAssignTicket,
		ActionGetAssignment, ActionChangeStatus, ActionSolveProblem,
		ActionCreateProject, ActionReadProject, ActionReadAllProject,
		ActionManageCategory, ActionManageStatus, ActionRateSatisfaction,
		ActionManageCustomer, ActionGetAllMasterFilter,
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}
