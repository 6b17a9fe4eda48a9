package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ShayCichocki/convoke/internal/graph"
	"github.com/ShayCichocki/convoke/pkg/models"
)

// passResult is everything one execution pass produced. A pass either runs
// the whole graph to completion or stalls in a deadlock; either way its
// results are complete for every agent that was launched.
type passResult struct {
	// results maps agent ID to its terminal result.
	results map[int]*models.AgentResult
	// order records completion order across waves, ascending within a wave.
	order []int
	// limitations are the critical tool requirements of failed agents.
	limitations []models.ToolLimitation
	// waves is how many waves ran before the pass ended.
	waves int
	// deadlocked is true when agents remained but none were ready.
	deadlocked bool
	// diagnostics names each stuck agent and its unmet dependencies when
	// deadlocked.
	diagnostics string
}

// executePass runs one pass over the graph: repeatedly resolve the ready
// set, launch the wave concurrently, wait for the wave barrier, and fold
// results back into pass state. Agents that fail still count as completed so
// their dependents can run against whatever context exists.
//
// When stopOnLimitation is set, the pass ends at the first wave close that
// accumulated critical limitations, so the caller can discard it and
// re-plan. Otherwise limitations are recorded and the pass runs on.
func (o *Orchestrator) executePass(ctx context.Context, g *graph.DependencyGraph, runID string, pass int, stopOnLimitation bool) *passResult {
	remaining := make(map[int]bool, g.Size())
	completed := make(map[int]bool, g.Size())
	for _, id := range g.IDs() {
		remaining[id] = true
	}

	pr := &passResult{results: make(map[int]*models.AgentResult, g.Size())}

	for len(remaining) > 0 {
		ready := g.Ready(remaining, completed)
		if len(ready) == 0 {
			pr.deadlocked = true
			pr.diagnostics = deadlockDiagnostics(g, remaining, completed)
			debugLog("pass %d deadlocked after %d waves: %s", pass, pr.waves, pr.diagnostics)
			o.emit(Event{Type: EventDeadlock, RunID: runID, Pass: pass, Wave: pr.waves, Message: pr.diagnostics})
			return pr
		}

		pr.waves++
		debugLog("pass %d wave %d: launching agents %v", pass, pr.waves, ready)
		o.emit(Event{
			Type:    EventWaveStarted,
			RunID:   runID,
			Pass:    pass,
			Wave:    pr.waves,
			Message: fmt.Sprintf("%d agent(s) ready", len(ready)),
		})

		waveResults := o.runWave(ctx, g, runID, pass, pr.waves, ready, pr.results)

		for _, id := range ready {
			result := waveResults[id]
			pr.results[id] = result
			pr.order = append(pr.order, id)
			delete(remaining, id)
			completed[id] = true

			if result.Status == models.StatusFailure {
				pr.limitations = append(pr.limitations, criticalLimitations(result)...)
			}
		}

		if stopOnLimitation && len(pr.limitations) > 0 {
			debugLog("pass %d wave %d closed with %d critical limitation(s), ending pass for re-plan", pass, pr.waves, len(pr.limitations))
			return pr
		}
	}

	return pr
}

// runWave executes one wave's agents concurrently and blocks until all of
// them have terminal results. Each agent sees only results from prior waves.
func (o *Orchestrator) runWave(ctx context.Context, g *graph.DependencyGraph, runID string, pass, wave int, ready []int, prior map[int]*models.AgentResult) map[int]*models.AgentResult {
	var mu sync.Mutex
	var wg sync.WaitGroup
	waveResults := make(map[int]*models.AgentResult, len(ready))

	for _, id := range ready {
		spec := g.Agent(id)
		wg.Add(1)
		go func(spec *models.AgentSpec) {
			defer wg.Done()

			o.emit(Event{Type: EventAgentStarted, RunID: runID, Pass: pass, Wave: wave, AgentID: spec.ID, AgentType: spec.Type})

			result, err := o.runner.Run(ctx, spec, prior)
			if err != nil {
				// Scheduler invariant violation; confine it to this agent.
				debugLog("agent %d runner error: %v", spec.ID, err)
				result = &models.AgentResult{
					AgentID:      spec.ID,
					Config:       spec,
					Status:       models.StatusFailure,
					PrimaryError: err.Error(),
				}
			}

			eventType := EventAgentCompleted
			var eventErr error
			if result.Status == models.StatusFailure {
				eventType = EventAgentFailed
				eventErr = fmt.Errorf("%s", result.PrimaryError)
			}
			o.emit(Event{Type: eventType, RunID: runID, Pass: pass, Wave: wave, AgentID: spec.ID, AgentType: spec.Type, Message: string(result.Status), Err: eventErr})

			mu.Lock()
			waveResults[spec.ID] = result
			mu.Unlock()
		}(spec)
	}

	wg.Wait()
	return waveResults
}

// criticalLimitations converts a failed agent's critical tool requirements
// into limitation records. One record per critical requirement; non-critical
// requirements degrade silently.
func criticalLimitations(result *models.AgentResult) []models.ToolLimitation {
	spec := result.Config
	if spec == nil {
		return nil
	}

	errText := result.PrimaryError
	if result.FallbackError != "" {
		errText = fmt.Sprintf("%s (fallback: %s)", result.PrimaryError, result.FallbackError)
	}

	var limitations []models.ToolLimitation
	for _, tool := range spec.RequiredTools {
		if !tool.Critical {
			continue
		}
		limitations = append(limitations, models.ToolLimitation{
			AgentID:              spec.ID,
			AgentType:            spec.Type,
			ToolName:             tool.ToolName,
			RequiredCapabilities: tool.RequiredCapabilities,
			Error:                errText,
		})
	}
	return limitations
}

// deadlockDiagnostics names every stuck agent and the dependencies it is
// waiting on. Build validation rejects cycles and dangling references, so a
// deadlock here indicates a scheduling bug, but the report keeps it debuggable.
func deadlockDiagnostics(g *graph.DependencyGraph, remaining, completed map[int]bool) string {
	stuck := make([]int, 0, len(remaining))
	for id := range remaining {
		stuck = append(stuck, id)
	}
	sort.Ints(stuck)

	parts := make([]string, 0, len(stuck))
	for _, id := range stuck {
		unmet := g.UnmetDependencies(id, completed)
		labels := make([]string, len(unmet))
		for i, depID := range unmet {
			labels[i] = fmt.Sprintf("%d", depID)
		}
		parts = append(parts, fmt.Sprintf("agent %d waiting on [%s]", id, strings.Join(labels, ", ")))
	}
	return "no ready agents: " + strings.Join(parts, "; ")
}
