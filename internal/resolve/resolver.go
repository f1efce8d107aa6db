package resolve

import (
	"fmt"
	"log/slog"

	"github.com/makina-run/makina/internal/artifact"
	"github.com/makina-run/makina/internal/expand"
	"github.com/makina-run/makina/internal/rule"
)

// Plan is the resolved execution plan for one batch of targets.
type Plan struct {
	// Tasks lists every task to execute, producers strictly before their
	// consumers. Skipped targets are included so the run report covers
	// them, but carry no dependency edges.
	Tasks []rule.Task

	// Deps maps a task ID to the IDs of the planned producers it must
	// wait for.
	Deps map[string][]string

	// Skipped marks targets whose output artifact already existed.
	Skipped map[string]bool

	// Force records whether the run bypasses the existence check. The
	// executor uses it to treat existing output directories as
	// overwritable.
	Force bool
}

// InitialState seeds a RunState for the plan: Skipped for satisfied
// targets, Unresolved for everything else.
func (p *Plan) InitialState() RunState {
	state := make(RunState, len(p.Tasks))
	for _, task := range p.Tasks {
		if p.Skipped[task.ID()] {
			state[task.ID()] = StateSkipped
		} else {
			state[task.ID()] = StateUnresolved
		}
	}
	return state
}

// TargetError attributes a resolution failure to the target that
// requested it. Failed targets do not prevent unrelated targets in the
// same invocation from proceeding.
type TargetError struct {
	Target string
	Err    error
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("target %s: %v", e.Target, e.Err)
}

func (e *TargetError) Unwrap() error {
	return e.Err
}

// Resolver resolves dependency plans against a registry and an artifact
// store.
type Resolver struct {
	registry  *rule.Registry
	expander  *expand.Expander
	artifacts artifact.Store
	force     bool
}

// New creates a Resolver. When force is true the existence
// short-circuit is disabled: every planned target executes even if its
// output directory is already present.
func New(registry *rule.Registry, expander *expand.Expander, artifacts artifact.Store, force bool) *Resolver {
	return &Resolver{
		registry:  registry,
		expander:  expander,
		artifacts: artifacts,
		force:     force,
	}
}

// Plan resolves a batch of target tasks into one merged execution plan.
//
// Each target is resolved independently; a MissingSourceError or
// DependencyCycleError aborts only the affected target and is returned
// as a TargetError, while the remaining targets still land in the plan.
// Tasks shared between targets (a common producer) appear once.
func (r *Resolver) Plan(targets []rule.Task) (*Plan, []*TargetError) {
	merged := &Plan{
		Deps:    make(map[string][]string),
		Skipped: make(map[string]bool),
		Force:   r.force,
	}
	inPlan := make(map[string]bool)
	var failures []*TargetError

	for _, target := range targets {
		single, err := r.planTarget(target)
		if err != nil {
			slog.Warn("target resolution failed",
				"target", target.ID(),
				"error", err,
			)
			failures = append(failures, &TargetError{Target: target.ID(), Err: err})
			continue
		}

		for _, task := range single.Tasks {
			id := task.ID()
			if inPlan[id] {
				continue
			}
			inPlan[id] = true
			merged.Tasks = append(merged.Tasks, task)
			merged.Deps[id] = single.Deps[id]
			if single.Skipped[id] {
				merged.Skipped[id] = true
			}
		}
	}

	return merged, failures
}

// planTarget resolves one target into its own producer-ordered plan.
func (r *Resolver) planTarget(target rule.Task) (*Plan, error) {
	plan := &Plan{
		Deps:    make(map[string][]string),
		Skipped: make(map[string]bool),
		Force:   r.force,
	}

	// Incremental short-circuit: a target whose output directory exists
	// is satisfied and reported as Skipped, unless force rebuilds it.
	if !r.force {
		exists, err := r.artifacts.Exists(target.Output)
		if err != nil {
			return nil, err
		}
		if exists {
			slog.Debug("target already satisfied",
				"target", target.ID(),
				"output", target.Output,
			)
			plan.Tasks = append(plan.Tasks, target)
			plan.Skipped[target.ID()] = true
			return plan, nil
		}
	}

	walk := &walker{
		resolver: r,
		plan:     plan,
		planned:  make(map[string]bool),
		visiting: make(map[string]bool),
	}
	if err := walk.visit(target, nil); err != nil {
		return nil, err
	}
	return plan, nil
}

// walker carries the state of one target's depth-first resolution.
type walker struct {
	resolver *Resolver
	plan     *Plan
	planned  map[string]bool
	visiting map[string]bool
}

// visit resolves task's inputs, planning missing producers first, then
// appends task itself. path is the chain of task IDs currently being
// resolved, used for cycle reporting.
//
// Inputs are checked twice against the artifact store: the directory
// check settles produced artifacts, and inputs no rule produces fall
// through to the plain-file source check.
func (w *walker) visit(task rule.Task, path []string) error {
	id := task.ID()

	if w.visiting[id] {
		return &rule.DependencyCycleError{Path: append(append([]string{}, path...), id)}
	}
	if w.planned[id] {
		return nil
	}

	w.visiting[id] = true
	path = append(path, id)

	for _, input := range task.Inputs {
		exists, err := w.resolver.artifacts.Exists(input)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		producerTpl, value, ok := w.resolver.registry.ProducerOf(input)
		if !ok {
			// A source input: present or fatal, never auto-produced.
			// Unlike output artifacts it may be a plain file, so the
			// directory check above does not settle it.
			present, err := w.resolver.artifacts.SourceExists(input)
			if err != nil {
				return err
			}
			if present {
				continue
			}
			return &rule.MissingSourceError{Path: input, Task: id}
		}

		producers, err := w.resolver.expander.Expand(producerTpl.Name, []string{value})
		if err != nil {
			return fmt.Errorf("expand producer of %q: %w", input, err)
		}
		producer := producers[0]

		if err := w.visit(producer, path); err != nil {
			return err
		}
		w.plan.Deps[id] = append(w.plan.Deps[id], producer.ID())

		slog.Debug("dependency edge resolved",
			"consumer", id,
			"producer", producer.ID(),
			"artifact", input,
		)
	}

	delete(w.visiting, id)
	w.planned[id] = true
	w.plan.Tasks = append(w.plan.Tasks, task)
	return nil
}
