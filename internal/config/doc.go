// Package config defines the format-agnostic pipeline definition model and
// the Loader interface implemented by the format-specific packages (hcl,
// yamlconf).
//
// A Definition is the single input of the planner: each Flow converts into
// an element graph plus a trap registry. Concrete loaders live in separate
// packages so the planner core never imports a parser.
package config
