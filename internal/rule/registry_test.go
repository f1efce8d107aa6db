package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDomain(t *testing.T) *Domain {
	t.Helper()
	d, err := NewDomain("model", []string{"white_noise_burst", "gaussian", "bbh", "cusp"})
	require.NoError(t, err)
	return d
}

func exportTemplate() *Template {
	return &Template{
		Name:    "export",
		Inputs:  []string{"weights/{model}.pt"},
		Output:  "output/export/{model}",
		Params:  ParamTable{"white_noise_burst": "wnb", "gaussian": "gaussian", "bbh": "bbh"},
		Command: "poetry run export-cli --model {param} --weights {input} --out {output}",
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry(testDomain(t))
	require.NoError(t, r.Register(exportTemplate()))

	got, err := r.Lookup("export")
	require.NoError(t, err)
	assert.Equal(t, "export", got.Name)
}

func TestRegistry_Lookup_Unknown(t *testing.T) {
	r := NewRegistry(testDomain(t))

	_, err := r.Lookup("train")
	var unk *UnknownRuleError
	require.ErrorAs(t, err, &unk)
	assert.Equal(t, "train", unk.Name)
}

func TestRegistry_Register_Duplicate(t *testing.T) {
	r := NewRegistry(testDomain(t))
	require.NoError(t, r.Register(exportTemplate()))

	err := r.Register(exportTemplate())
	var dup *DuplicateRuleError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "export", dup.Name)
}

func TestRegistry_Register_OutputMissingWildcard(t *testing.T) {
	r := NewRegistry(testDomain(t))
	tpl := exportTemplate()
	tpl.Output = "output/export/all"

	err := r.Register(tpl)
	var inv *InvalidTemplateError
	require.ErrorAs(t, err, &inv)
}

func TestRegistry_Register_OutputDoubleWildcard(t *testing.T) {
	r := NewRegistry(testDomain(t))
	tpl := exportTemplate()
	tpl.Output = "output/{model}/{model}"

	err := r.Register(tpl)
	var inv *InvalidTemplateError
	require.ErrorAs(t, err, &inv)
}

func TestRegistry_Register_ParamOutsideDomain(t *testing.T) {
	r := NewRegistry(testDomain(t))
	tpl := exportTemplate()
	tpl.Params = ParamTable{"bbh": "bbh", "kink": "kink"}

	err := r.Register(tpl)
	var inv *InvalidTemplateError
	require.ErrorAs(t, err, &inv)
	assert.Contains(t, inv.Reason, "kink")
}

func TestRegistry_Register_DefaultOutsideDomain(t *testing.T) {
	r := NewRegistry(testDomain(t))
	tpl := exportTemplate()
	tpl.Defaults = []string{"kink"}

	err := r.Register(tpl)
	var inv *InvalidTemplateError
	require.ErrorAs(t, err, &inv)
}

func TestRegistry_Register_DefaultOutsideParamCoverage(t *testing.T) {
	// cusp is in the domain but has no parameter table entry, so it cannot
	// be a default target for this rule.
	r := NewRegistry(testDomain(t))
	tpl := exportTemplate()
	tpl.Defaults = []string{"cusp"}

	err := r.Register(tpl)
	var inv *InvalidTemplateError
	require.ErrorAs(t, err, &inv)
	assert.Contains(t, inv.Reason, "cusp")
}

func TestRegistry_Templates_RegistrationOrder(t *testing.T) {
	r := NewRegistry(testDomain(t))

	infer := exportTemplate()
	infer.Name = "infer"
	infer.Inputs = []string{"output/export/{model}"}
	infer.Output = "output/infer/{model}"

	require.NoError(t, r.Register(exportTemplate()))
	require.NoError(t, r.Register(infer))

	var names []string
	for _, tpl := range r.Templates() {
		names = append(names, tpl.Name)
	}
	assert.Equal(t, []string{"export", "infer"}, names)
}

func TestRegistry_ProducerOf(t *testing.T) {
	r := NewRegistry(testDomain(t))
	require.NoError(t, r.Register(exportTemplate()))

	tests := []struct {
		name      string
		path      string
		wantRule  string
		wantValue string
		wantOK    bool
	}{
		{"match", "output/export/bbh", "export", "bbh", true},
		{"value outside domain", "output/export/kink", "", "", false},
		{"wrong prefix", "results/export/bbh", "", "", false},
		{"empty value", "output/export/", "", "", false},
		{"plain source path", "weights/bbh.pt", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl, value, ok := r.ProducerOf(tt.path)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantRule, tpl.Name)
				assert.Equal(t, tt.wantValue, value)
			}
		})
	}
}

func TestParamTable_Resolve(t *testing.T) {
	table := ParamTable{"bbh": "bbh", "white_noise_burst": "wnb"}

	param, ok := table.Resolve("white_noise_burst")
	require.True(t, ok)
	assert.Equal(t, "wnb", param)

	_, ok = table.Resolve("cusp")
	assert.False(t, ok)
}

func TestParamTable_Values_Sorted(t *testing.T) {
	table := ParamTable{"gaussian": "g", "bbh": "b", "cusp": "c"}
	assert.Equal(t, []string{"bbh", "cusp", "gaussian"}, table.Values())
}

func TestIsConfigError(t *testing.T) {
	assert.True(t, IsConfigError(&DomainError{Reason: "x"}))
	assert.True(t, IsConfigError(&InvalidTemplateError{Name: "export"}))
	assert.True(t, IsConfigError(&UnknownRuleError{Name: "train"}))
	assert.False(t, IsConfigError(&ExecutionError{Task: "export:bbh", ExitCode: 1}))
	assert.False(t, IsConfigError(&ContractViolationError{Task: "export:bbh"}))
}
