// Package graph provides the validated dependency graph used to schedule
// planned agents in waves.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ShayCichocki/convoke/pkg/models"
)

// UnknownDependencyError indicates an agent relies on an ID that does not
// exist in the graph.
type UnknownDependencyError struct {
	// AgentID is the agent with the dangling reference.
	AgentID int
	// Missing lists the referenced IDs that do not exist.
	Missing []int
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("agent %d relies on unknown agent(s) %s", e.AgentID, joinIDs(e.Missing))
}

// CycleError indicates the graph contains a dependency cycle.
type CycleError struct {
	// Members are the agent IDs participating in the cycle.
	Members []int
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency between agent(s) %s", joinIDs(e.Members))
}

// DependencyGraph is a directed acyclic graph of agent dependencies.
// Edges point from an agent to the agents it relies on. The graph is
// immutable after a successful Build; wave state (remaining/completed)
// lives with the caller, keeping Ready a pure function.
type DependencyGraph struct {
	// nodes maps agent ID to its spec.
	nodes map[int]*models.AgentSpec
	// edges maps agent ID to the IDs it relies on, in declaration order.
	edges map[int][]int
	// order preserves the declaration order of agent IDs.
	order []int
}

// Build constructs and validates a dependency graph from the planned agents.
// It fails with *UnknownDependencyError for dangling relies_on references and
// *CycleError when a topological ordering does not exist, so structurally
// invalid plans are rejected before any agent executes.
func Build(agents []models.AgentSpec) (*DependencyGraph, error) {
	g := &DependencyGraph{
		nodes: make(map[int]*models.AgentSpec, len(agents)),
		edges: make(map[int][]int, len(agents)),
	}

	for i := range agents {
		spec := &agents[i]
		if _, dup := g.nodes[spec.ID]; dup {
			return nil, fmt.Errorf("duplicate agent id %d", spec.ID)
		}
		g.nodes[spec.ID] = spec
		g.order = append(g.order, spec.ID)
	}

	for _, id := range g.order {
		spec := g.nodes[id]
		var missing []int
		for _, depID := range spec.ReliesOn {
			if _, exists := g.nodes[depID]; !exists {
				missing = append(missing, depID)
				continue
			}
			g.edges[id] = append(g.edges[id], depID)
		}
		if len(missing) > 0 {
			return nil, &UnknownDependencyError{AgentID: id, Missing: missing}
		}
	}

	if _, err := g.TopologicalSort(); err != nil {
		return nil, err
	}

	return g, nil
}

// TopologicalSort returns agent IDs in an order where all dependencies come
// before the agents that depend on them. Returns *CycleError naming the
// cycle members if no such ordering exists.
func (g *DependencyGraph) TopologicalSort() ([]int, error) {
	// Color states: 0 = unvisited, 1 = in progress, 2 = done.
	colors := make(map[int]int, len(g.nodes))
	var result []int

	var cycle []int
	var visit func(id int, stack []int) bool
	visit = func(id int, stack []int) bool {
		colors[id] = 1
		stack = append(stack, id)

		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				// Back edge: everything on the stack from depID onward is the cycle.
				for i, sid := range stack {
					if sid == depID {
						cycle = append([]int(nil), stack[i:]...)
						break
					}
				}
				return true
			case 0:
				if visit(depID, stack) {
					return true
				}
			}
		}

		colors[id] = 2
		result = append(result, id)
		return false
	}

	for _, id := range g.order {
		if colors[id] == 0 {
			if visit(id, nil) {
				sort.Ints(cycle)
				return nil, &CycleError{Members: cycle}
			}
		}
	}

	return result, nil
}

// Ready computes the next wave: the IDs in remaining whose dependencies are
// all in completed. Pure with respect to graph state; IDs are returned in
// ascending order for deterministic scheduling.
func (g *DependencyGraph) Ready(remaining, completed map[int]bool) []int {
	var ready []int
	for id := range remaining {
		if !remaining[id] {
			continue
		}
		satisfied := true
		for _, depID := range g.edges[id] {
			if !completed[depID] {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, id)
		}
	}
	sort.Ints(ready)
	return ready
}

// UnmetDependencies returns the dependency IDs of the given agent that are
// not yet completed. Used for deadlock diagnostics.
func (g *DependencyGraph) UnmetDependencies(id int, completed map[int]bool) []int {
	var unmet []int
	for _, depID := range g.edges[id] {
		if !completed[depID] {
			unmet = append(unmet, depID)
		}
	}
	return unmet
}

// Dependencies returns the IDs the given agent relies on, in declaration order.
func (g *DependencyGraph) Dependencies(id int) []int {
	return g.edges[id]
}

// Dependents returns the IDs of agents that rely on the given agent.
func (g *DependencyGraph) Dependents(id int) []int {
	var dependents []int
	for _, nodeID := range g.order {
		for _, depID := range g.edges[nodeID] {
			if depID == id {
				dependents = append(dependents, nodeID)
				break
			}
		}
	}
	return dependents
}

// Agent returns the spec for the given ID, or nil if not found.
func (g *DependencyGraph) Agent(id int) *models.AgentSpec {
	return g.nodes[id]
}

// Size returns the number of agents in the graph.
func (g *DependencyGraph) Size() int {
	return len(g.nodes)
}

// IDs returns all agent IDs in declaration order.
func (g *DependencyGraph) IDs() []int {
	return g.order
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ", ")
}
