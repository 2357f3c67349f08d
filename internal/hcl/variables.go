package hcl

import (
	"fmt"
	"maps"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// resolveVariables evaluates variable defaults and applies the overrides
// given on the command line. Overrides arrive as strings and are converted to
// the type of the declared default when it is a primitive.
func resolveVariables(blocks []*variableBlock, overrides map[string]string) (map[string]cty.Value, error) {
	vals := make(map[string]cty.Value, len(blocks))
	for _, v := range blocks {
		if _, dup := vals[v.Name]; dup {
			return nil, fmt.Errorf("variable %q is declared more than once", v.Name)
		}
		val := cty.NullVal(cty.DynamicPseudoType)
		if v.Default != nil {
			d, diags := v.Default.Value(nil)
			if diags.HasErrors() {
				return nil, fmt.Errorf("variable %q: invalid default: %w", v.Name, diags)
			}
			val = d
		}
		vals[v.Name] = val
	}

	for _, name := range slices.Sorted(maps.Keys(overrides)) {
		current, ok := vals[name]
		if !ok {
			return nil, fmt.Errorf("cannot set undeclared variable %q", name)
		}
		val := cty.StringVal(overrides[name])
		if !current.IsNull() && current.Type().IsPrimitiveType() && current.Type() != cty.String {
			converted, err := convert.Convert(val, current.Type())
			if err != nil {
				return nil, fmt.Errorf("variable %q: cannot use %q as %s: %w", name, overrides[name], current.Type().FriendlyName(), err)
			}
			val = converted
		}
		vals[name] = val
	}

	for _, name := range slices.Sorted(maps.Keys(vals)) {
		if vals[name].IsNull() {
			return nil, fmt.Errorf("variable %q has no default and was not set", name)
		}
	}
	return vals, nil
}

// evalContext exposes variables as `var.<name>` plus a few string helpers.
func evalContext(vars map[string]cty.Value) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"var": cty.ObjectVal(vars)},
		Functions: map[string]function.Function{
			"format": stdlib.FormatFunc,
			"join":   stdlib.JoinFunc,
			"lower":  stdlib.LowerFunc,
			"upper":  stdlib.UpperFunc,
		},
	}
}
