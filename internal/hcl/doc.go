// Package hcl provides the HCL implementation of the config.Loader
// interface. It parses `variable` and `flow` blocks, evaluates expressions
// against the declared variables and translates the result into the
// format-agnostic config.Definition.
package hcl
