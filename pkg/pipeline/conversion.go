package pipeline

import (
	"github.com/ralph-build/orchestrator/pkg/plan"
	"github.com/ralph-build/orchestrator/pkg/store"
)

// toPlan converts the store's JSON-mirror Plan into the pure plan.Plan
// the Plan Model operates on. The two types are intentionally separate
// (store has no dependency on plan's domain logic) so this conversion is
// the seam between persistence and logic.
func toPlan(sp store.Plan) plan.Plan {
	stages := make([]plan.Stage, len(sp.Stages))
	for i, ss := range sp.Stages {
		stories := make([]plan.Story, len(ss.Stories))
		for j, st := range ss.Stories {
			stories[j] = plan.Story{
				Title:       st.Title,
				Description: st.Description,
				Priority:    plan.Priority(st.Priority),
				Passes:      st.Passes,
				IsSkipped:   st.IsSkipped,
				SkipReason:  st.SkipReason,
				IsSubtasked: st.IsSubtasked,
			}
		}
		stages[i] = plan.Stage{
			Name:        ss.Name,
			Mission:     ss.Mission,
			IsCompleted: ss.IsCompleted,
			Stories:     stories,
		}
	}
	return plan.Plan{Stages: stages}
}

// toStorePlan is the inverse of toPlan.
func toStorePlan(p plan.Plan) store.Plan {
	stages := make([]store.Stage, len(p.Stages))
	for i, ss := range p.Stages {
		stories := make([]store.Story, len(ss.Stories))
		for j, st := range ss.Stories {
			stories[j] = store.Story{
				Title:       st.Title,
				Description: st.Description,
				Priority:    string(st.Priority),
				Passes:      st.Passes,
				IsSkipped:   st.IsSkipped,
				SkipReason:  st.SkipReason,
				IsSubtasked: st.IsSubtasked,
			}
		}
		stages[i] = store.Stage{
			Name:        ss.Name,
			Mission:     ss.Mission,
			IsCompleted: ss.IsCompleted,
			Stories:     stories,
		}
	}
	return store.Plan{Stages: stages}
}
