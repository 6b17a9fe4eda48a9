// Package orchestrator drives the execution of a planned agent graph: it
// schedules agents into dependency-ordered waves, runs each wave
// concurrently, escalates critical tool limitations into a single bounded
// re-plan, and aggregates the terminal results into the verdict input.
//
// All state for one execution pass (remaining/completed sets, results,
// accumulated limitations) is scoped to that pass. A re-plan discards the
// pass wholesale and starts over with the new graph; results from the old
// graph are never merged, since the new plan may renumber agents entirely.
package orchestrator
