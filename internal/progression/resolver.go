// Package progression holds the pure decision logic of the simulation
// engine: step resolution over the case's prerequisite graph, completion
// scoring, and the aggregate arithmetic. Nothing here touches storage, so it
// can always be recomputed from the durable session record alone.
package progression

import "simulation-service/internal/models"

// CompletedSet converts an ordered completed-step-id list into a lookup set.
func CompletedSet(stepIDs []string) map[string]bool {
	set := make(map[string]bool, len(stepIDs))
	for _, id := range stepIDs {
		set[id] = true
	}
	return set
}

// Resolve returns the next eligible step: the first step in declared order
// that is not yet completed and whose prerequisites are all completed. The
// second return value is false when no eligible step remains (exhaustion,
// which signals session completion).
//
// Declared order is the tie-break when several steps are eligible at once,
// so resolution is deterministic for a given completed set. Cycle detection
// is a publish-time concern (CaseGraph.Validate); Resolve assumes a valid
// graph.
func Resolve(graph *models.CaseGraph, completed map[string]bool) (*models.CaseStep, bool) {
	for i := range graph.Steps {
		step := &graph.Steps[i]
		if completed[step.ID] {
			continue
		}
		if prerequisitesMet(step, completed) {
			return step, true
		}
	}
	return nil, false
}

func prerequisitesMet(step *models.CaseStep, completed map[string]bool) bool {
	for _, pre := range step.Prerequisites {
		if !completed[pre] {
			return false
		}
	}
	return true
}
