package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/makina-run/makina/internal/rule"
)

// Load reads and registers a pipeline definition from path.
func Load(path string) (*rule.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline file: %w", err)
	}
	reg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// Parse decodes a pipeline definition and registers every rule against
// a fresh registry. Unknown YAML fields are rejected: a typoed key in a
// pipeline definition should fail loudly, not silently drop a rule
// property.
func Parse(data []byte) (*rule.Registry, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Pipeline
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode pipeline: %w", err)
	}

	domain, err := rule.NewDomain(p.Wildcard.Name, p.Wildcard.Values)
	if err != nil {
		return nil, err
	}

	reg := rule.NewRegistry(domain)
	for _, decl := range p.Rules {
		tpl := &rule.Template{
			Name:     decl.Name,
			Inputs:   decl.Inputs,
			Output:   decl.Output,
			Command:  decl.Command,
			Env:      decl.Env,
			Workdir:  decl.Workdir,
			Defaults: decl.Defaults,
		}
		if decl.Params != nil {
			tpl.Params = rule.ParamTable(decl.Params)
		}
		if err := reg.Register(tpl); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
