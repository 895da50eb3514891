package loop

import (
	"fmt"

	"github.com/churn-dev/churn/internal/types"
)

// NextUnit returns the first pending unit whose dependencies are all
// resolved, or nil when no unit is currently runnable. Dependencies on
// ids absent from the plan are treated as resolved.
func NextUnit(plan []types.Unit) *types.Unit {
	byID := indexPlan(plan)
	for i := range plan {
		if plan[i].Status != types.UnitPending {
			continue
		}
		if depsResolved(&plan[i], byID) {
			return &plan[i]
		}
	}
	return nil
}

func depsResolved(unit *types.Unit, byID map[string]*types.Unit) bool {
	for _, dep := range unit.DependsOn {
		if u, ok := byID[dep]; ok && !u.Status.Resolved() {
			return false
		}
	}
	return true
}

// Blocking reports whether any pending unit depends on unitID, directly
// or through a chain of pending units. A unit nothing depends on is
// non-blocking and may be skipped.
func Blocking(plan []types.Unit, unitID string) bool {
	// dependents[x] lists the pending units that name x as a dependency.
	dependents := make(map[string][]string)
	for i := range plan {
		if plan[i].Status != types.UnitPending {
			continue
		}
		for _, dep := range plan[i].DependsOn {
			dependents[dep] = append(dependents[dep], plan[i].ID)
		}
	}

	visited := map[string]bool{}
	frontier := []string{unitID}
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		for _, dep := range dependents[id] {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			frontier = append(frontier, dep)
		}
	}
	return len(visited) > 0
}

// MarkDone flips the named pending units to done and returns the ids
// that actually transitioned. Ids not in the plan or already resolved
// are ignored.
func MarkDone(plan []types.Unit, ids []string) []string {
	byID := indexPlan(plan)
	var done []string
	for _, id := range ids {
		u, ok := byID[id]
		if !ok || u.Status != types.UnitPending {
			continue
		}
		u.Status = types.UnitDone
		done = append(done, id)
	}
	return done
}

// MarkSkipped flips a pending unit to skipped.
func MarkSkipped(plan []types.Unit, id string) bool {
	for i := range plan {
		if plan[i].ID == id && plan[i].Status == types.UnitPending {
			plan[i].Status = types.UnitSkipped
			return true
		}
	}
	return false
}

// ReplaceUnit marks oldID replaced and splices the replacement units
// into the plan immediately after it. Other units that depended on
// oldID are rewritten to depend on every replacement, so the chain of
// work stays intact.
func ReplaceUnit(plan []types.Unit, oldID string, replacements []types.Unit) ([]types.Unit, error) {
	if len(replacements) == 0 {
		return nil, fmt.Errorf("replacing unit %s: no replacement units given", oldID)
	}
	byID := indexPlan(plan)
	for i := range replacements {
		r := &replacements[i]
		if r.ID == "" {
			return nil, fmt.Errorf("replacing unit %s: replacement missing id", oldID)
		}
		if _, exists := byID[r.ID]; exists {
			return nil, fmt.Errorf("replacing unit %s: replacement id %s already in plan", oldID, r.ID)
		}
		byID[r.ID] = r
		if r.Status == "" {
			r.Status = types.UnitPending
		}
	}

	idx := -1
	for i := range plan {
		if plan[i].ID == oldID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("replacing unit %s: not in plan", oldID)
	}

	plan[idx].Status = types.UnitReplaced

	replIDs := make([]string, len(replacements))
	for i := range replacements {
		replIDs[i] = replacements[i].ID
	}
	for i := range plan {
		plan[i].DependsOn = rewriteDep(plan[i].DependsOn, oldID, replIDs)
	}

	out := make([]types.Unit, 0, len(plan)+len(replacements))
	out = append(out, plan[:idx+1]...)
	out = append(out, replacements...)
	out = append(out, plan[idx+1:]...)
	return out, nil
}

func rewriteDep(deps []string, oldID string, replIDs []string) []string {
	idx := -1
	for i, dep := range deps {
		if dep == oldID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return deps
	}
	out := make([]string, 0, len(deps)-1+len(replIDs))
	out = append(out, deps[:idx]...)
	out = append(out, replIDs...)
	out = append(out, deps[idx+1:]...)
	return out
}

// AdoptUnits appends proposed units to the plan. A replan on a loop
// with no plan (or on a synthetic unit) adopts the decomposition the
// planning worker came back with.
func AdoptUnits(plan []types.Unit, proposed []types.Unit) ([]types.Unit, error) {
	if len(proposed) == 0 {
		return nil, fmt.Errorf("adopting units: none given")
	}
	byID := indexPlan(plan)
	for i := range proposed {
		p := &proposed[i]
		if p.ID == "" {
			return nil, fmt.Errorf("adopting units: unit %d missing id", i)
		}
		if _, exists := byID[p.ID]; exists {
			return nil, fmt.Errorf("adopting units: id %s already in plan", p.ID)
		}
		byID[p.ID] = p
		if p.Status == "" {
			p.Status = types.UnitPending
		}
	}
	return append(plan, proposed...), nil
}

// AllResolved reports whether every unit in a non-empty plan has
// reached a resolved status. Loops without a plan never complete this
// way; they exit on the completion keyword or a budget.
func AllResolved(plan []types.Unit) bool {
	if len(plan) == 0 {
		return false
	}
	for i := range plan {
		if !plan[i].Status.Resolved() {
			return false
		}
	}
	return true
}

func indexPlan(plan []types.Unit) map[string]*types.Unit {
	byID := make(map[string]*types.Unit, len(plan))
	for i := range plan {
		byID[plan[i].ID] = &plan[i]
	}
	return byID
}
