package loop

import (
	"reflect"
	"testing"

	"github.com/churn-dev/churn/internal/types"
)

func unit(id string, status types.UnitStatus, deps ...string) types.Unit {
	return types.Unit{ID: id, Status: status, DependsOn: deps}
}

func TestNextUnit(t *testing.T) {
	t.Run("first pending wins", func(t *testing.T) {
		plan := []types.Unit{
			unit("u1", types.UnitDone),
			unit("u2", types.UnitPending),
			unit("u3", types.UnitPending),
		}
		if got := NextUnit(plan); got == nil || got.ID != "u2" {
			t.Errorf("NextUnit = %v, want u2", got)
		}
	})

	t.Run("pending dependency defers", func(t *testing.T) {
		plan := []types.Unit{
			unit("u1", types.UnitPending, "u2"),
			unit("u2", types.UnitPending),
		}
		if got := NextUnit(plan); got == nil || got.ID != "u2" {
			t.Errorf("NextUnit = %v, want u2", got)
		}
	})

	t.Run("skipped dependency counts as resolved", func(t *testing.T) {
		plan := []types.Unit{
			unit("u1", types.UnitSkipped),
			unit("u2", types.UnitPending, "u1"),
		}
		if got := NextUnit(plan); got == nil || got.ID != "u2" {
			t.Errorf("NextUnit = %v, want u2", got)
		}
	})

	t.Run("dangling dependency is ignored", func(t *testing.T) {
		plan := []types.Unit{unit("u1", types.UnitPending, "ghost")}
		if got := NextUnit(plan); got == nil || got.ID != "u1" {
			t.Errorf("NextUnit = %v, want u1", got)
		}
	})

	t.Run("nothing runnable", func(t *testing.T) {
		plan := []types.Unit{
			unit("u1", types.UnitPending, "u2"),
			unit("u2", types.UnitPending, "u1"),
		}
		if got := NextUnit(plan); got != nil {
			t.Errorf("NextUnit = %v, want nil for a dependency cycle", got)
		}
	})

	t.Run("all resolved", func(t *testing.T) {
		plan := []types.Unit{unit("u1", types.UnitDone)}
		if got := NextUnit(plan); got != nil {
			t.Errorf("NextUnit = %v, want nil", got)
		}
	})
}

func TestBlocking(t *testing.T) {
	tests := []struct {
		name string
		plan []types.Unit
		id   string
		want bool
	}{
		{
			"direct pending dependent",
			[]types.Unit{unit("u1", types.UnitPending), unit("u2", types.UnitPending, "u1")},
			"u1", true,
		},
		{
			"transitive pending chain",
			[]types.Unit{
				unit("u1", types.UnitPending),
				unit("u2", types.UnitPending, "u1"),
				unit("u3", types.UnitPending, "u2"),
			},
			"u1", true,
		},
		{
			"no dependents",
			[]types.Unit{unit("u1", types.UnitPending), unit("u2", types.UnitPending)},
			"u1", false,
		},
		{
			"dependent already done",
			[]types.Unit{unit("u1", types.UnitPending), unit("u2", types.UnitDone, "u1")},
			"u1", false,
		},
		{
			"chain broken by done intermediate",
			[]types.Unit{
				unit("u1", types.UnitPending),
				unit("u2", types.UnitDone, "u1"),
				unit("u3", types.UnitPending, "u2"),
			},
			"u1", false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Blocking(tt.plan, tt.id); got != tt.want {
				t.Errorf("Blocking(%s) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestMarkDone(t *testing.T) {
	plan := []types.Unit{
		unit("u1", types.UnitPending),
		unit("u2", types.UnitDone),
		unit("u3", types.UnitPending),
	}
	got := MarkDone(plan, []string{"u1", "u2", "ghost", "u3"})
	want := []string{"u1", "u3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MarkDone = %v, want %v", got, want)
	}
	if plan[0].Status != types.UnitDone || plan[2].Status != types.UnitDone {
		t.Errorf("plan not updated in place: %+v", plan)
	}
}

func TestMarkSkipped(t *testing.T) {
	plan := []types.Unit{unit("u1", types.UnitPending), unit("u2", types.UnitDone)}
	if !MarkSkipped(plan, "u1") {
		t.Error("expected skip of pending unit to succeed")
	}
	if plan[0].Status != types.UnitSkipped {
		t.Errorf("u1 = %s, want skipped", plan[0].Status)
	}
	if MarkSkipped(plan, "u2") {
		t.Error("resolved unit must not be skippable")
	}
	if MarkSkipped(plan, "ghost") {
		t.Error("unknown unit must not be skippable")
	}
}

func TestReplaceUnit(t *testing.T) {
	plan := []types.Unit{
		unit("u1", types.UnitPending),
		unit("u2", types.UnitPending, "u1"),
		unit("u3", types.UnitPending, "u2"),
	}
	repl := []types.Unit{{ID: "u1a", Title: "first half"}, {ID: "u1b", Title: "second half"}}

	got, err := ReplaceUnit(plan, "u1", repl)
	if err != nil {
		t.Fatalf("ReplaceUnit: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("plan len = %d, want 5", len(got))
	}
	if got[0].Status != types.UnitReplaced {
		t.Errorf("u1 = %s, want replaced", got[0].Status)
	}
	if got[1].ID != "u1a" || got[2].ID != "u1b" {
		t.Errorf("replacements not spliced after original: %v %v", got[1].ID, got[2].ID)
	}
	if got[1].Status != types.UnitPending {
		t.Errorf("replacement status = %s, want pending", got[1].Status)
	}

	var u2 *types.Unit
	for i := range got {
		if got[i].ID == "u2" {
			u2 = &got[i]
		}
	}
	if u2 == nil || !reflect.DeepEqual(u2.DependsOn, []string{"u1a", "u1b"}) {
		t.Errorf("u2 deps = %v, want rewritten to [u1a u1b]", u2.DependsOn)
	}
}

func TestReplaceUnitErrors(t *testing.T) {
	plan := []types.Unit{unit("u1", types.UnitPending)}

	if _, err := ReplaceUnit(plan, "u1", nil); err == nil {
		t.Error("expected error for empty replacements")
	}
	if _, err := ReplaceUnit(plan, "ghost", []types.Unit{{ID: "x"}}); err == nil {
		t.Error("expected error for unknown unit")
	}
	if _, err := ReplaceUnit(plan, "u1", []types.Unit{{}}); err == nil {
		t.Error("expected error for replacement without id")
	}
	if _, err := ReplaceUnit(plan, "u1", []types.Unit{{ID: "u1"}}); err == nil {
		t.Error("expected error for duplicate id")
	}
	if _, err := ReplaceUnit(plan, "u1", []types.Unit{{ID: "x"}, {ID: "x"}}); err == nil {
		t.Error("expected error for duplicate ids within the replacements")
	}
}

func TestAdoptUnits(t *testing.T) {
	plan := []types.Unit{unit("u1", types.UnitDone)}
	got, err := AdoptUnits(plan, []types.Unit{{ID: "u2"}, {ID: "u3"}})
	if err != nil {
		t.Fatalf("AdoptUnits: %v", err)
	}
	if len(got) != 3 || got[1].ID != "u2" || got[1].Status != types.UnitPending {
		t.Errorf("unexpected plan after adopt: %+v", got)
	}
	if _, err := AdoptUnits(plan, []types.Unit{{ID: "u1"}}); err == nil {
		t.Error("expected error adopting a duplicate id")
	}
	if _, err := AdoptUnits(plan, []types.Unit{{ID: "u4"}, {ID: "u4"}}); err == nil {
		t.Error("expected error adopting duplicate ids in one batch")
	}
	if _, err := AdoptUnits(plan, nil); err == nil {
		t.Error("expected error adopting nothing")
	}
}

func TestAllResolved(t *testing.T) {
	if AllResolved(nil) {
		t.Error("empty plan must not count as resolved")
	}
	if AllResolved([]types.Unit{unit("u1", types.UnitPending)}) {
		t.Error("pending unit must block resolution")
	}
	plan := []types.Unit{
		unit("u1", types.UnitDone),
		unit("u2", types.UnitSkipped),
		unit("u3", types.UnitReplaced),
	}
	if !AllResolved(plan) {
		t.Error("done, skipped and replaced all count as resolved")
	}
}
