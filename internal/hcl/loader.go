package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/flowplan/internal/config"
	"github.com/vk/flowplan/internal/ctxlog"
	"github.com/vk/flowplan/internal/fsutil"
)

// Extension is the file extension of HCL definitions.
const Extension = ".hcl"

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct {
	vars map[string]string
}

// NewLoader creates a new HCL definition loader. vars override variable
// defaults by name.
func NewLoader(vars map[string]string) *Loader {
	return &Loader{vars: vars}
}

// Load parses every .hcl file under paths in two passes: variables first,
// across all files, then flows evaluated against them.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Definition, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := fsutil.FindFiles(paths, Extension)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	var variables []*variableBlock
	bodies := make([]hcl.Body, 0, len(files))

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root variablesRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode variables in %s: %w", file, diags)
		}
		variables = append(variables, root.Variables...)
		bodies = append(bodies, root.Remain)
	}

	vars, err := resolveVariables(variables, l.vars)
	if err != nil {
		return nil, err
	}
	evalCtx := evalContext(vars)
	logger.Debug("Variables resolved.", "count", len(vars))

	def := &config.Definition{}
	for i, body := range bodies {
		var root flowsRoot
		if diags := gohcl.DecodeBody(body, evalCtx, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", files[i], diags)
		}
		for _, fb := range root.Flows {
			if err := def.Merge(&config.Definition{Flows: []*config.Flow{translateFlow(fb)}}); err != nil {
				return nil, fmt.Errorf("%s: %w", files[i], err)
			}
		}
	}

	logger.Debug("HCL loading complete.", "flows", len(def.Flows))
	return def, nil
}
