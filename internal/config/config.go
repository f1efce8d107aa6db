package config

// Pipeline is the YAML shape of a pipeline definition.
type Pipeline struct {
	// Wildcard declares the closed wildcard domain.
	Wildcard WildcardDecl `yaml:"wildcard"`

	// Rules are registered in declaration order.
	Rules []RuleDecl `yaml:"rules"`
}

// WildcardDecl declares the wildcard name and its enumerated values.
type WildcardDecl struct {
	Name   string   `yaml:"name"`
	Values []string `yaml:"values"`
}

// RuleDecl declares one rule template.
type RuleDecl struct {
	Name    string            `yaml:"name"`
	Inputs  []string          `yaml:"inputs,omitempty"`
	Output  string            `yaml:"output"`
	Params  map[string]string `yaml:"params,omitempty"`
	Command string            `yaml:"command"`
	Env     map[string]string `yaml:"env,omitempty"`
	Workdir string            `yaml:"workdir,omitempty"`

	// Defaults is the curated subset expanded when the rule is requested
	// without explicit wildcard values.
	Defaults []string `yaml:"defaults,omitempty"`
}
