// Package routing maps (task kind, priority tier) to an ordered list of model
// descriptors and picks primary and fallback models from it.
//
// Selection is a pure table lookup plus optional criteria filtering: no I/O,
// no randomness and no shared mutable state, so a Router is safe for
// concurrent use without locking.
package routing

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ferro-labs/survey-coder/generation"
)

// ErrNoCandidate is returned when a route has no usable model.
var ErrNoCandidate = errors.New("no candidate model")

// Default request sizing for the MaxCostPerRequest criterion.
const (
	DefaultExpectedInputUnits  = 500
	DefaultExpectedOutputUnits = 100
)

// ModelDescriptor is static per-model configuration.
type ModelDescriptor struct {
	ID                string                  `json:"id" yaml:"id"`
	Provider          string                  `json:"provider" yaml:"provider"`
	LatencyClass      generation.LatencyClass `json:"latency_class" yaml:"latency_class"`
	CostPerInputUnit  float64                 `json:"cost_per_input_unit" yaml:"cost_per_input_unit"`
	CostPerOutputUnit float64                 `json:"cost_per_output_unit" yaml:"cost_per_output_unit"`
	QualityScore      float64                 `json:"quality_score" yaml:"quality_score"`
	SupportedTasks    []generation.TaskKind   `json:"supported_tasks" yaml:"supported_tasks"`
}

// Supports reports whether the model is configured for task.
func (d ModelDescriptor) Supports(task generation.TaskKind) bool {
	for _, t := range d.SupportedTasks {
		if t == task {
			return true
		}
	}
	return false
}

// Route is one routing-table coordinate.
type Route struct {
	Task     generation.TaskKind
	Priority generation.Priority
}

func (r Route) String() string {
	return string(r.Task) + "/" + string(r.Priority)
}

// Table maps a route to model IDs, primary first.
type Table map[Route][]string

// ConfigError lists every problem found while validating a routing
// configuration.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid routing configuration: " + strings.Join(e.Problems, "; ")
}

// Router answers selection queries over a validated table.
type Router struct {
	models map[string]ModelDescriptor
	table  Table
	tasks  []generation.TaskKind
}

// New validates models and table and returns a Router. Every task named in
// the table must have a non-empty entry for every priority tier, every model
// ID must resolve, and every referenced model must support the task.
// required lists tasks that must be routable even if the table omits them.
func New(models []ModelDescriptor, table Table, required ...generation.TaskKind) (*Router, error) {
	var problems []string
	byID := make(map[string]ModelDescriptor, len(models))
	for i, m := range models {
		switch {
		case m.ID == "":
			problems = append(problems, fmt.Sprintf("models[%d]: id is required", i))
			continue
		case m.Provider == "":
			problems = append(problems, fmt.Sprintf("model %s: provider is required", m.ID))
		case m.LatencyClass.Rank() == 0:
			problems = append(problems, fmt.Sprintf("model %s: unknown latency class %q", m.ID, m.LatencyClass))
		case m.CostPerInputUnit < 0 || m.CostPerOutputUnit < 0:
			problems = append(problems, fmt.Sprintf("model %s: costs must be non-negative", m.ID))
		}
		if _, dup := byID[m.ID]; dup {
			problems = append(problems, fmt.Sprintf("model %s: duplicate id", m.ID))
		}
		byID[m.ID] = m
	}

	taskSet := make(map[generation.TaskKind]struct{})
	for _, t := range required {
		taskSet[t] = struct{}{}
	}
	for route, ids := range table {
		if !route.Priority.Valid() {
			problems = append(problems, fmt.Sprintf("route %s: unknown priority", route))
			continue
		}
		taskSet[route.Task] = struct{}{}
		if len(ids) == 0 {
			problems = append(problems, fmt.Sprintf("route %s: no models listed", route))
		}
		for _, id := range ids {
			m, ok := byID[id]
			if !ok {
				problems = append(problems, fmt.Sprintf("route %s: unknown model %q", route, id))
				continue
			}
			if !m.Supports(route.Task) {
				problems = append(problems, fmt.Sprintf("route %s: model %s does not support task", route, id))
			}
		}
	}

	tasks := make([]generation.TaskKind, 0, len(taskSet))
	for t := range taskSet {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i] < tasks[j] })

	for _, task := range tasks {
		for _, p := range generation.Priorities() {
			if _, ok := table[Route{Task: task, Priority: p}]; !ok {
				problems = append(problems, fmt.Sprintf("route %s/%s: missing", task, p))
			}
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, &ConfigError{Problems: problems}
	}

	cp := make(Table, len(table))
	for r, ids := range table {
		cp[r] = append([]string(nil), ids...)
	}
	return &Router{models: byID, table: cp, tasks: tasks}, nil
}

// Tasks returns the routable task kinds in sorted order.
func (r *Router) Tasks() []generation.TaskKind {
	return append([]generation.TaskKind(nil), r.tasks...)
}

// Models returns every configured descriptor, sorted by ID.
func (r *Router) Models() []ModelDescriptor {
	out := make([]ModelDescriptor, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Model looks up a descriptor by ID.
func (r *Router) Model(id string) (ModelDescriptor, bool) {
	m, ok := r.models[id]
	return m, ok
}

// Candidates returns the ordered descriptors for a route.
func (r *Router) Candidates(task generation.TaskKind, priority generation.Priority) []ModelDescriptor {
	ids := r.table[Route{Task: task, Priority: priority}]
	out := make([]ModelDescriptor, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.models[id])
	}
	return out
}

// SelectModel returns the primary model for a route.
func (r *Router) SelectModel(task generation.TaskKind, priority generation.Priority) (ModelDescriptor, error) {
	c := r.Candidates(task, priority)
	if len(c) == 0 {
		return ModelDescriptor{}, fmt.Errorf("%w for %s/%s", ErrNoCandidate, task, priority)
	}
	return c[0], nil
}

// SelectFallback returns the first model for task that is not excluded,
// searching the requested tier first and then the other tiers in canonical
// order.
func (r *Router) SelectFallback(task generation.TaskKind, priority generation.Priority, excluding ...string) (ModelDescriptor, bool) {
	skip := make(map[string]struct{}, len(excluding))
	for _, id := range excluding {
		skip[id] = struct{}{}
	}
	tiers := []generation.Priority{priority}
	for _, p := range generation.Priorities() {
		if p != priority {
			tiers = append(tiers, p)
		}
	}
	for _, p := range tiers {
		for _, m := range r.Candidates(task, p) {
			if _, ok := skip[m.ID]; !ok {
				return m, true
			}
		}
	}
	return ModelDescriptor{}, false
}

// SelectByCriteria returns the highest-ranked candidate for the route that
// meets every non-zero constraint in c. Constraints are never relaxed.
func (r *Router) SelectByCriteria(task generation.TaskKind, priority generation.Priority, c generation.Criteria) (ModelDescriptor, bool) {
	for _, m := range r.Candidates(task, priority) {
		if Satisfies(m, c) {
			return m, true
		}
	}
	return ModelDescriptor{}, false
}

// Satisfies reports whether m meets every non-zero constraint in c.
func Satisfies(m ModelDescriptor, c generation.Criteria) bool {
	if c.MaxCostPerRequest > 0 {
		in, out := c.ExpectedInputUnits, c.ExpectedOutputUnits
		if in <= 0 {
			in = DefaultExpectedInputUnits
		}
		if out <= 0 {
			out = DefaultExpectedOutputUnits
		}
		if EstimateCost(m, in, out) > c.MaxCostPerRequest {
			return false
		}
	}
	if c.MaxLatency != "" && m.LatencyClass.Rank() > c.MaxLatency.Rank() {
		return false
	}
	if c.MinQuality > 0 && m.QualityScore < c.MinQuality {
		return false
	}
	if c.PreferredProvider != "" && m.Provider != c.PreferredProvider {
		return false
	}
	return true
}

// EstimateCost returns inputUnits*CostPerInputUnit + outputUnits*CostPerOutputUnit.
func EstimateCost(d ModelDescriptor, inputUnits, outputUnits int) float64 {
	return float64(inputUnits)*d.CostPerInputUnit + float64(outputUnits)*d.CostPerOutputUnit
}
