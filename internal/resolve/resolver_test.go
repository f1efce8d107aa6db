package resolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makina-run/makina/internal/artifact"
	"github.com/makina-run/makina/internal/expand"
	"github.com/makina-run/makina/internal/rule"
)

// pipelineRegistry builds the export/infer pipeline used across resolver
// tests: infer consumes export's output, export consumes source weights.
func pipelineRegistry(t *testing.T) *rule.Registry {
	t.Helper()

	domain, err := rule.NewDomain("model", []string{"white_noise_burst", "gaussian", "bbh", "cusp"})
	require.NoError(t, err)

	r := rule.NewRegistry(domain)
	require.NoError(t, r.Register(&rule.Template{
		Name:    "export",
		Inputs:  []string{"weights/{model}.pt"},
		Output:  "output/export/{model}",
		Params:  rule.ParamTable{"white_noise_burst": "wnb", "gaussian": "gaussian", "bbh": "bbh"},
		Command: "export {param} {output}",
	}))
	require.NoError(t, r.Register(&rule.Template{
		Name:    "infer",
		Inputs:  []string{"output/export/{model}"},
		Output:  "output/infer/{model}",
		Params:  rule.ParamTable{"white_noise_burst": "wnb", "bbh": "bbh"},
		Command: "infer {param} {output}",
	}))
	return r
}

func mustExpand(t *testing.T, reg *rule.Registry, ruleName string, values ...string) []rule.Task {
	t.Helper()
	tasks, err := expand.New(reg).Expand(ruleName, values)
	require.NoError(t, err)
	return tasks
}

func planIDs(p *Plan) []string {
	ids := make([]string, 0, len(p.Tasks))
	for _, task := range p.Tasks {
		ids = append(ids, task.ID())
	}
	return ids
}

func TestPlan_ProducerBeforeConsumer(t *testing.T) {
	reg := pipelineRegistry(t)
	store := artifact.NewMemStore("weights/bbh.pt")
	r := New(reg, expand.New(reg), store, false)

	plan, failures := r.Plan(mustExpand(t, reg, "infer", "bbh"))
	require.Empty(t, failures)

	assert.Equal(t, []string{"export:bbh", "infer:bbh"}, planIDs(plan),
		"producer is planned strictly before its consumer")
	assert.Equal(t, []string{"export:bbh"}, plan.Deps["infer:bbh"])
	assert.Empty(t, plan.Deps["export:bbh"])
}

func TestPlan_ExistingInputNeedsNoProducer(t *testing.T) {
	reg := pipelineRegistry(t)
	store := artifact.NewMemStore("output/export/bbh")
	r := New(reg, expand.New(reg), store, false)

	plan, failures := r.Plan(mustExpand(t, reg, "infer", "bbh"))
	require.Empty(t, failures)

	assert.Equal(t, []string{"infer:bbh"}, planIDs(plan))
	assert.Empty(t, plan.Deps["infer:bbh"])
}

func TestPlan_SatisfiedTargetSkipped(t *testing.T) {
	reg := pipelineRegistry(t)
	store := artifact.NewMemStore("weights/bbh.pt", "output/export/bbh")
	r := New(reg, expand.New(reg), store, false)

	plan, failures := r.Plan(mustExpand(t, reg, "export", "bbh"))
	require.Empty(t, failures)

	require.Equal(t, []string{"export:bbh"}, planIDs(plan))
	assert.True(t, plan.Skipped["export:bbh"])

	state := plan.InitialState()
	assert.Equal(t, StateSkipped, state["export:bbh"])
}

func TestPlan_ForceBypassesExistenceCheck(t *testing.T) {
	reg := pipelineRegistry(t)
	store := artifact.NewMemStore("weights/bbh.pt", "output/export/bbh")
	r := New(reg, expand.New(reg), store, true)

	plan, failures := r.Plan(mustExpand(t, reg, "export", "bbh"))
	require.Empty(t, failures)

	require.Equal(t, []string{"export:bbh"}, planIDs(plan))
	assert.False(t, plan.Skipped["export:bbh"])
	assert.True(t, plan.Force)
}

func TestPlan_PlainFileSourceInput(t *testing.T) {
	// Checkpoints are plain files, not directory artifacts. Resolution
	// against the real filesystem store must accept them as present
	// source inputs.
	reg := pipelineRegistry(t)
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "weights"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "weights", "bbh.pt"), []byte("ckpt"), 0o644))

	store := &artifact.DirStore{Root: root}
	r := New(reg, expand.New(reg), store, false)

	plan, failures := r.Plan(mustExpand(t, reg, "export", "bbh"))
	require.Empty(t, failures)
	assert.Equal(t, []string{"export:bbh"}, planIDs(plan))
}

func TestPlan_PlainFileSourceInMemStore(t *testing.T) {
	reg := pipelineRegistry(t)
	store := artifact.NewMemStore()
	store.PutFile("weights/bbh.pt")
	r := New(reg, expand.New(reg), store, false)

	plan, failures := r.Plan(mustExpand(t, reg, "export", "bbh"))
	require.Empty(t, failures)
	assert.Equal(t, []string{"export:bbh"}, planIDs(plan))
}

func TestPlan_MissingSource(t *testing.T) {
	reg := pipelineRegistry(t)
	store := artifact.NewMemStore() // no weights anywhere
	r := New(reg, expand.New(reg), store, false)

	plan, failures := r.Plan(mustExpand(t, reg, "export", "bbh"))

	require.Len(t, failures, 1)
	var missing *rule.MissingSourceError
	require.ErrorAs(t, failures[0], &missing)
	assert.Equal(t, "weights/bbh.pt", missing.Path)
	assert.Empty(t, plan.Tasks)
}

func TestPlan_MissingSourceDoesNotAbortUnrelatedTargets(t *testing.T) {
	reg := pipelineRegistry(t)
	store := artifact.NewMemStore("weights/gaussian.pt") // bbh weights missing
	r := New(reg, expand.New(reg), store, false)

	plan, failures := r.Plan(mustExpand(t, reg, "export", "bbh", "gaussian"))

	require.Len(t, failures, 1)
	assert.Equal(t, "export:bbh", failures[0].Target)
	assert.Equal(t, []string{"export:gaussian"}, planIDs(plan),
		"the unaffected target still proceeds")
}

func TestPlan_DirectCycle(t *testing.T) {
	domain, err := rule.NewDomain("model", []string{"bbh"})
	require.NoError(t, err)
	reg := rule.NewRegistry(domain)
	require.NoError(t, reg.Register(&rule.Template{
		Name:    "loop",
		Inputs:  []string{"output/loop/{model}"},
		Output:  "output/loop/{model}",
		Params:  rule.ParamTable{"bbh": "bbh"},
		Command: "loop {output}",
	}))

	r := New(reg, expand.New(reg), artifact.NewMemStore(), false)
	_, failures := r.Plan(mustExpand(t, reg, "loop", "bbh"))

	require.Len(t, failures, 1)
	var cycle *rule.DependencyCycleError
	require.ErrorAs(t, failures[0], &cycle)
	assert.Equal(t, []string{"loop:bbh", "loop:bbh"}, cycle.Path)
}

func TestPlan_TransitiveCycle(t *testing.T) {
	// a consumes b's output, b consumes a's output.
	domain, err := rule.NewDomain("model", []string{"bbh"})
	require.NoError(t, err)
	reg := rule.NewRegistry(domain)
	require.NoError(t, reg.Register(&rule.Template{
		Name:    "a",
		Inputs:  []string{"output/b/{model}"},
		Output:  "output/a/{model}",
		Params:  rule.ParamTable{"bbh": "bbh"},
		Command: "a {output}",
	}))
	require.NoError(t, reg.Register(&rule.Template{
		Name:    "b",
		Inputs:  []string{"output/a/{model}"},
		Output:  "output/b/{model}",
		Params:  rule.ParamTable{"bbh": "bbh"},
		Command: "b {output}",
	}))

	r := New(reg, expand.New(reg), artifact.NewMemStore(), false)
	_, failures := r.Plan(mustExpand(t, reg, "a", "bbh"))

	require.Len(t, failures, 1)
	var cycle *rule.DependencyCycleError
	require.ErrorAs(t, failures[0], &cycle)
	assert.Equal(t, []string{"a:bbh", "b:bbh", "a:bbh"}, cycle.Path)
}

func TestPlan_SharedProducerPlannedOnce(t *testing.T) {
	// Both targets need export:bbh; the merged plan contains it once.
	domain, err := rule.NewDomain("model", []string{"bbh"})
	require.NoError(t, err)
	reg := rule.NewRegistry(domain)
	require.NoError(t, reg.Register(&rule.Template{
		Name:    "export",
		Inputs:  []string{"weights/{model}.pt"},
		Output:  "output/export/{model}",
		Params:  rule.ParamTable{"bbh": "bbh"},
		Command: "export {output}",
	}))
	require.NoError(t, reg.Register(&rule.Template{
		Name:    "infer",
		Inputs:  []string{"output/export/{model}"},
		Output:  "output/infer/{model}",
		Params:  rule.ParamTable{"bbh": "bbh"},
		Command: "infer {output}",
	}))
	require.NoError(t, reg.Register(&rule.Template{
		Name:    "plot",
		Inputs:  []string{"output/export/{model}"},
		Output:  "output/plot/{model}",
		Params:  rule.ParamTable{"bbh": "bbh"},
		Command: "plot {output}",
	}))

	store := artifact.NewMemStore("weights/bbh.pt")
	r := New(reg, expand.New(reg), store, false)

	targets := append(
		mustExpand(t, reg, "infer", "bbh"),
		mustExpand(t, reg, "plot", "bbh")...,
	)
	plan, failures := r.Plan(targets)
	require.Empty(t, failures)

	assert.Equal(t, []string{"export:bbh", "infer:bbh", "plot:bbh"}, planIDs(plan))
	assert.Equal(t, []string{"export:bbh"}, plan.Deps["infer:bbh"])
	assert.Equal(t, []string{"export:bbh"}, plan.Deps["plot:bbh"])
}

func TestPlan_UnsupportedProducerValueSurfaces(t *testing.T) {
	// A consumer whose producer rule lacks a parameter entry for the
	// bound value: the producer expansion failure propagates as the
	// target's resolution error.
	domain, err := rule.NewDomain("model", []string{"cusp"})
	require.NoError(t, err)
	reg := rule.NewRegistry(domain)
	require.NoError(t, reg.Register(&rule.Template{
		Name:    "export",
		Inputs:  []string{},
		Output:  "output/export/{model}",
		Params:  rule.ParamTable{}, // covers nothing
		Command: "export {output}",
	}))
	require.NoError(t, reg.Register(&rule.Template{
		Name:    "infer",
		Inputs:  []string{"output/export/{model}"},
		Output:  "output/infer/{model}",
		Params:  rule.ParamTable{"cusp": "cusp"},
		Command: "infer {output}",
	}))

	r := New(reg, expand.New(reg), artifact.NewMemStore(), false)
	_, failures := r.Plan(mustExpand(t, reg, "infer", "cusp"))

	require.Len(t, failures, 1)
	var unsup *rule.UnsupportedForRuleError
	require.ErrorAs(t, failures[0], &unsup)
	assert.Equal(t, "export", unsup.Rule)
}
