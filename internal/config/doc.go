// Package config loads pipeline definitions from YAML.
//
// A pipeline file declares the wildcard domain and the rule templates
// over it. Loading performs full registration against a fresh registry,
// so every configuration error (duplicate rule, parameter outside the
// domain, malformed output pattern) surfaces before any execution
// starts.
package config
