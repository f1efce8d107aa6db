package expand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makina-run/makina/internal/rule"
)

func testRegistry(t *testing.T) *rule.Registry {
	t.Helper()

	domain, err := rule.NewDomain("model", []string{"white_noise_burst", "gaussian", "bbh", "cusp"})
	require.NoError(t, err)

	r := rule.NewRegistry(domain)
	require.NoError(t, r.Register(&rule.Template{
		Name:     "export",
		Inputs:   []string{"weights/{model}.pt"},
		Output:   "output/export/{model}",
		Params:   rule.ParamTable{"white_noise_burst": "wnb", "gaussian": "gaussian", "bbh": "bbh"},
		Command:  "poetry run export-cli --model {param} --weights {input} --out {output}",
		Env:      map[string]string{"CUDA_VISIBLE_DEVICES": "0"},
		Defaults: []string{"bbh"},
	}))
	require.NoError(t, r.Register(&rule.Template{
		Name:     "infer",
		Inputs:   []string{"output/export/{model}", "data/background.h5"},
		Output:   "output/infer/{model}",
		Params:   rule.ParamTable{"white_noise_burst": "wnb", "bbh": "bbh"},
		Command:  "poetry run infer-cli --model {param} --export {input0} --data {input1} --out {output}",
		Defaults: []string{"white_noise_burst"},
	}))
	return r
}

func TestExpand_SingleValue(t *testing.T) {
	e := New(testRegistry(t))

	tasks, err := e.Expand("export", []string{"bbh"})
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	task := tasks[0]
	assert.Equal(t, "export", task.Rule)
	assert.Equal(t, "bbh", task.Wildcard)
	assert.Equal(t, []string{"weights/bbh.pt"}, task.Inputs)
	assert.Equal(t, "output/export/bbh", task.Output)
	assert.Equal(t, "bbh", task.Param)
	assert.Equal(t,
		"poetry run export-cli --model bbh --weights weights/bbh.pt --out output/export/bbh",
		task.Command)
	assert.Equal(t, "0", task.Env["CUDA_VISIBLE_DEVICES"])
	assert.Equal(t, "export:bbh", task.ID())
}

func TestExpand_PreservesValueOrder(t *testing.T) {
	e := New(testRegistry(t))

	tasks, err := e.Expand("export", []string{"gaussian", "bbh", "white_noise_burst"})
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	var order []string
	for _, task := range tasks {
		order = append(order, task.Wildcard)
	}
	assert.Equal(t, []string{"gaussian", "bbh", "white_noise_burst"}, order,
		"expansion preserves the input value order, not alphabetical")
}

func TestExpand_ValueOutsideDomain(t *testing.T) {
	e := New(testRegistry(t))

	_, err := e.Expand("export", []string{"kink"})
	var de *rule.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "kink", de.Value)
}

func TestExpand_ValueUnsupportedByRule(t *testing.T) {
	// cusp is in the domain but absent from export's parameter table.
	e := New(testRegistry(t))

	_, err := e.Expand("export", []string{"cusp"})
	var unsup *rule.UnsupportedForRuleError
	require.ErrorAs(t, err, &unsup)
	assert.Equal(t, "export", unsup.Rule)
	assert.Equal(t, "cusp", unsup.Value)
}

func TestExpand_UnknownRule(t *testing.T) {
	e := New(testRegistry(t))

	_, err := e.Expand("train", []string{"bbh"})
	var unk *rule.UnknownRuleError
	require.ErrorAs(t, err, &unk)
}

func TestExpand_PositionalInputPlaceholders(t *testing.T) {
	e := New(testRegistry(t))

	tasks, err := e.Expand("infer", []string{"bbh"})
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	assert.Equal(t, []string{"output/export/bbh", "data/background.h5"}, tasks[0].Inputs)
	assert.Equal(t,
		"poetry run infer-cli --model bbh --export output/export/bbh --data data/background.h5 --out output/infer/bbh",
		tasks[0].Command)
}

func TestExpandDefault_UsesDeclaredSubset(t *testing.T) {
	e := New(testRegistry(t))

	tasks, err := e.ExpandDefault("export")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "bbh", tasks[0].Wildcard)

	tasks, err = e.ExpandDefault("infer")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "white_noise_burst", tasks[0].Wildcard)
}

func TestExpandDefault_NoDefaults(t *testing.T) {
	domain, err := rule.NewDomain("model", []string{"bbh"})
	require.NoError(t, err)
	r := rule.NewRegistry(domain)
	require.NoError(t, r.Register(&rule.Template{
		Name:    "export",
		Output:  "output/export/{model}",
		Params:  rule.ParamTable{"bbh": "bbh"},
		Command: "true",
	}))

	_, err = New(r).ExpandDefault("export")
	var inv *rule.InvalidTemplateError
	require.ErrorAs(t, err, &inv)
}

func TestExpand_IsPure(t *testing.T) {
	// Expanding the same target twice yields identical tasks.
	e := New(testRegistry(t))

	first, err := e.Expand("export", []string{"bbh", "gaussian"})
	require.NoError(t, err)
	second, err := e.Expand("export", []string{"bbh", "gaussian"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
