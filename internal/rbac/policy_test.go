package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roleSet(ids ...int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func TestDefaultPoliciesCoverEveryAction(t *testing.T) {
	table := DefaultPolicies()
	for _, action := range AllActions() {
		roles, ok := table[action]
		require.True(t, ok, "action %s has no policy", action)
		assert.NotEmpty(t, roles, "action %s has no qualifying roles", action)
	}
	assert.Len(t, table, len(AllActions()), "policy table declares actions missing from AllActions")
}

func TestCheckActionScenario(t *testing.T) {
	policy := NewPolicy(DefaultPolicies(), nil)
	roles := roleSet(RoleCreateUser)

	assert.True(t, policy.CheckAction(1, roles, ActionCreateUser))
	assert.False(t, policy.CheckAction(1, roles, ActionDeleteUser))
}

func TestNoRolesDeniesEveryAction(t *testing.T) {
	policy := NewPolicy(DefaultPolicies(), nil)
	for _, action := range AllActions() {
		assert.False(t, policy.CheckAction(1, roleSet(), action), string(action))
	}
}

func TestEveryQualifyingRoleGrantsItsAction(t *testing.T) {
	policy := NewPolicy(DefaultPolicies(), nil)
	for action, roles := range DefaultPolicies() {
		for _, role := range roles {
			assert.True(t, policy.CheckAction(1, roleSet(role), action), "%s via role %d", action, role)
		}
	}
}

func TestUnknownActionDenied(t *testing.T) {
	policy := NewPolicy(DefaultPolicies(), nil)
	all := make([]int64, 0)
	for id := int64(1); id <= RoleGetAllMasterFilter; id++ {
		all = append(all, id)
	}
	assert.False(t, policy.CheckAction(1, roleSet(all...), Action("launch_rocket")))
	assert.False(t, policy.CheckActions(1, roleSet(all...), []Action{"launch_rocket"}, LogicOR))
}

func TestCheckActionsLogic(t *testing.T) {
	policy := NewPolicy(DefaultPolicies(), nil)
	actions := AllActions()
	sets := []map[int64]struct{}{
		roleSet(),
		roleSet(RoleCreateUser),
		roleSet(RoleDeleteUser),
		roleSet(RoleCreateUser, RoleDeleteUser),
		roleSet(RoleReadAllTicket, RoleAssignTicket),
	}
	for _, roles := range sets {
		for _, a := range actions {
			for _, b := range actions {
				ra := policy.CheckAction(1, roles, a)
				rb := policy.CheckAction(1, roles, b)
				assert.Equal(t, ra || rb, policy.CheckActions(1, roles, []Action{a, b}, LogicOR), "OR %s %s", a, b)
				assert.Equal(t, ra && rb, policy.CheckActions(1, roles, []Action{a, b}, LogicAND), "AND %s %s", a, b)
			}
		}
	}
}

func TestCheckActionsEmptyDenied(t *testing.T) {
	policy := NewPolicy(DefaultPolicies(), nil)
	assert.False(t, policy.CheckActions(1, roleSet(RoleCreateUser), nil, LogicAND))
	assert.False(t, policy.CheckActions(1, roleSet(RoleCreateUser), nil, LogicOR))
}

func TestAndWithUnknownActionDenied(t *testing.T) {
	policy := NewPolicy(DefaultPolicies(), nil)
	roles := roleSet(RoleCreateUser)
	assert.False(t, policy.CheckActions(1, roles, []Action{ActionCreateUser, "bogus"}, LogicAND))
	assert.True(t, policy.CheckActions(1, roles, []Action{ActionCreateUser, "bogus"}, LogicOR))
}

func TestParseLogic(t *testing.T) {
	assert.Equal(t, LogicAND, ParseLogic("AND"))
	assert.Equal(t, LogicAND, ParseLogic(" and "))
	assert.Equal(t, LogicOR, ParseLogic("OR"))
	assert.Equal(t, LogicOR, ParseLogic(""))
	assert.Equal(t, LogicOR, ParseLogic("xor"))
}

func TestLogicNormalize(t *testing.T) {
	cases := []struct {
		in   Logic
		want Logic
		ok   bool
	}{
		{"", LogicOR, true},
		{"OR", LogicOR, true},
		{"or", LogicOR, true},
		{"AND", LogicAND, true},
		{" and ", LogicAND, true},
		{"XOR", "XOR", false},
		{"&&", "&&", false},
	}
	for _, tc := range cases {
		got, ok := tc.in.Normalize()
		assert.Equal(t, tc.ok, ok, "logic %q", tc.in)
		assert.Equal(t, tc.want, got, "logic %q", tc.in)
	}
}

func TestCheckActionsUnknownLogicDenied(t *testing.T) {
	policy := NewPolicy(DefaultPolicies(), nil)
	roles := roleSet(RoleCreateUser, RoleDeleteUser)
	both := []Action{ActionCreateUser, ActionDeleteUser}
	assert.True(t, policy.CheckActions(1, roles, both, Logic("and")))
	assert.False(t, policy.CheckActions(1, roleSet(RoleCreateUser), both, Logic("and")))
	assert.False(t, policy.CheckActions(1, roles, both, Logic("XOR")))
}

func TestPolicyIsImmutable(t *testing.T) {
	table := map[Action][]int64{ActionCreateUser: {RoleCreateUser}}
	policy := NewPolicy(table, nil)
	table[ActionCreateUser][0] = RoleDeleteUser

	assert.True(t, policy.CheckAction(1, roleSet(RoleCreateUser), ActionCreateUser))
	roles := policy.RequiredRoles(ActionCreateUser)
	roles[0] = 99
	assert.Equal(t, []int64{RoleCreateUser}, policy.RequiredRoles(ActionCreateUser))
}

func TestEvaluatorLookup(t *testing.T) {
	policy := NewPolicy(DefaultPolicies(), nil)
	eval, ok := policy.Evaluator(ActionReadTicket)
	require.True(t, ok)
	assert.True(t, eval(1, roleSet(RoleReadAllTicket)))
	_, ok = policy.Evaluator("nope")
	assert.False(t, ok)
	assert.Equal(t, AllActions(), policy.Actions())
}
