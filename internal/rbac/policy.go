package rbac

import (
	"log/slog"
	"sort"
	"strings"
)

// Logic selects how multiple action checks are combined.
type Logic string

const (
	// LogicOR passes when any action passes. It is the default.
	LogicOR Logic = "OR"
	// LogicAND passes only when every action passes.
	LogicAND Logic = "AND"
)

// Normalize returns the canonical form of l. Empty means LogicOR; matching ignores case
// and surrounding space. ok is false for any other value.
func (l Logic) Normalize() (Logic, bool) {
	switch raw := strings.TrimSpace(string(l)); {
	case raw == "", strings.EqualFold(raw, string(LogicOR)):
		return LogicOR, true
	case strings.EqualFold(raw, string(LogicAND)):
		return LogicAND, true
	}
	return l, false
}

// ParseLogic maps user input onto a Logic, defaulting to LogicOR.
func ParseLogic(raw string) Logic {
	if logic, ok := Logic(raw).Normalize(); ok {
		return logic
	}
	return LogicOR
}

// Evaluator decides whether a role set qualifies for an action.
type Evaluator func(userID int64, roleIDs map[int64]struct{}) bool

// Policy is the immutable action table plus its evaluation rules.
type Policy struct {
	required   map[Action][]int64
	evaluators map[Action]Evaluator
	logger     *slog.Logger
}

// NewPolicy builds a Policy from an action → role ids table.
func NewPolicy(table map[Action][]int64, logger *slog.Logger) *Policy {
	p := &Policy{
		required:   make(map[Action][]int64, len(table)),
		evaluators: make(map[Action]Evaluator, len(table)),
		logger:     logger,
	}
	for action, roles := range table {
		roles = append([]int64(nil), roles...)
		p.required[action] = roles
		p.evaluators[action] = requireAnyRole(roles)
	}
	return p
}

func requireAnyRole(required []int64) Evaluator {
	return func(_ int64, roleIDs map[int64]struct{}) bool {
		return containsAny(roleIDs, required)
	}
}

// Evaluator returns the evaluator bound to action.
func (p *Policy) Evaluator(action Action) (Evaluator, bool) {
	eval, ok := p.evaluators[action]
	return eval, ok
}

// RequiredRoles returns the role ids that qualify for action.
func (p *Policy) RequiredRoles(action Action) []int64 {
	return append([]int64(nil), p.required[action]...)
}

// Actions lists the actions known to the policy in name order.
func (p *Policy) Actions() []Action {
	actions := make([]Action, 0, len(p.evaluators))
	for a := range p.evaluators {
		actions = append(actions, a)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}

// CheckAction evaluates a single action. Unknown actions are denied and logged.
func (p *Policy) CheckAction(userID int64, roleIDs map[int64]struct{}, action Action) bool {
	eval, ok := p.evaluators[action]
	if !ok {
		if p.logger != nil {
			p.logger.Error("rbac unknown action",
				slog.String("action", string(action)),
				slog.Any("valid_actions", p.Actions()))
		}
		return false
	}
	return eval(userID, roleIDs)
}

// CheckActions evaluates every action, then combines the results with logic.
// An empty action list or an unrecognised logic is denied.
func (p *Policy) CheckActions(userID int64, roleIDs map[int64]struct{}, actions []Action, logic Logic) bool {
	if len(actions) == 0 {
		return false
	}
	logic, ok := logic.Normalize()
	if !ok {
		if p.logger != nil {
			p.logger.Error("rbac unknown logic", slog.String("logic", string(logic)))
		}
		return false
	}
	results := make([]bool, len(actions))
	for i, action := range actions {
		results[i] = p.CheckAction(userID, roleIDs, action)
	}
	if logic == LogicAND {
		for _, ok := range results {
			if !ok {
				return false
			}
		}
		return true
	}
	for _, ok := range results {
		if ok {
			return true
		}
	}
	return false
}

// CheckRoles reports whether roleIDs contains any of required.
func (p *Policy) CheckRoles(roleIDs map[int64]struct{}, required []int64) bool {
	return containsAny(roleIDs, required)
}

func containsAny(set map[int64]struct{}, want []int64) bool {
	for _, id := range want {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
