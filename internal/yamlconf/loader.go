// Package yamlconf provides a YAML implementation of the config.Loader
// interface for environments that generate pipeline definitions rather than
// write them by hand.
//
// Path strings may reference variables as ${var.name}. Variables are declared
// under the top-level `variables` key and can be overridden by the caller.
package yamlconf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/vk/flowplan/internal/config"
	"github.com/vk/flowplan/internal/ctxlog"
	"github.com/vk/flowplan/internal/fsutil"
	"gopkg.in/yaml.v3"
)

// Extensions are the file extensions of YAML definitions.
var Extensions = []string{".yaml", ".yml"}

var varRef = regexp.MustCompile(`\$\{var\.([A-Za-z_][A-Za-z0-9_]*)\}`)

type fileYAML struct {
	Variables map[string]string `yaml:"variables"`
	Flows     []flowYAML        `yaml:"flows"`
}

type flowYAML struct {
	Name      string        `yaml:"name"`
	Taps      []tapYAML     `yaml:"taps"`
	Operators []elementYAML `yaml:"operators"`
	Groups    []elementYAML `yaml:"groups"`
	Traps     []trapYAML    `yaml:"traps"`
}

type tapYAML struct {
	Name      string   `yaml:"name"`
	Path      string   `yaml:"path"`
	Temporary bool     `yaml:"temporary"`
	Priority  int      `yaml:"priority"`
	From      []string `yaml:"from"`
}

type elementYAML struct {
	Name   string   `yaml:"name"`
	Branch string   `yaml:"branch"`
	From   []string `yaml:"from"`
}

type trapYAML struct {
	Branch string `yaml:"branch"`
	Tap    string `yaml:"tap"`
}

// Loader is the YAML-specific implementation of the config.Loader interface.
type Loader struct {
	vars map[string]string
}

// NewLoader creates a YAML definition loader. vars override the variables
// declared in the files.
func NewLoader(vars map[string]string) *Loader {
	return &Loader{vars: vars}
}

// Load reads every YAML file under paths. Unknown keys are rejected.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Definition, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("YAML loader started.", "path_count", len(paths))

	files, err := fsutil.FindFiles(paths, Extensions...)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered YAML files.", "count", len(files))

	parsed := make([]fileYAML, 0, len(files))
	vars := make(map[string]string)
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading file: %w", err)
		}
		f, err := decode(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode YAML file %s: %w", file, err)
		}
		for name, val := range f.Variables {
			if _, dup := vars[name]; dup {
				return nil, fmt.Errorf("variable %q is declared more than once", name)
			}
			vars[name] = val
		}
		parsed = append(parsed, f)
	}
	for name, val := range l.vars {
		if _, ok := vars[name]; !ok {
			return nil, fmt.Errorf("cannot set undeclared variable %q", name)
		}
		vars[name] = val
	}

	def := &config.Definition{}
	for i, f := range parsed {
		for _, fy := range f.Flows {
			flow, err := translateFlow(fy, vars)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", files[i], err)
			}
			if err := def.Merge(&config.Definition{Flows: []*config.Flow{flow}}); err != nil {
				return nil, fmt.Errorf("%s: %w", files[i], err)
			}
		}
	}

	logger.Debug("YAML loading complete.", "flows", len(def.Flows))
	return def, nil
}

func decode(data []byte) (fileYAML, error) {
	var f fileYAML
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return fileYAML{}, err
	}
	return f, nil
}

func translateFlow(fy flowYAML, vars map[string]string) (*config.Flow, error) {
	f := &config.Flow{Name: fy.Name}
	for _, t := range fy.Taps {
		path, err := expand(t.Path, vars)
		if err != nil {
			return nil, fmt.Errorf("flow %q, tap %q: %w", fy.Name, t.Name, err)
		}
		f.Taps = append(f.Taps, &config.Tap{
			Name:      t.Name,
			Path:      path,
			Temporary: t.Temporary,
			Priority:  t.Priority,
			From:      t.From,
		})
	}
	for _, o := range fy.Operators {
		f.Operators = append(f.Operators, &config.Operator{Name: o.Name, Branch: o.Branch, From: o.From})
	}
	for _, g := range fy.Groups {
		f.Groups = append(f.Groups, &config.Group{Name: g.Name, Branch: g.Branch, From: g.From})
	}
	for _, tr := range fy.Traps {
		f.Traps = append(f.Traps, &config.Trap{Branch: tr.Branch, Tap: tr.Tap})
	}
	return f, nil
}

// expand replaces ${var.name} references.
func expand(s string, vars map[string]string) (string, error) {
	var missing string
	out := varRef.ReplaceAllStringFunc(s, func(ref string) string {
		name := varRef.FindStringSubmatch(ref)[1]
		val, ok := vars[name]
		if !ok && missing == "" {
			missing = name
		}
		return val
	})
	if missing != "" {
		return "", fmt.Errorf("undeclared variable %q", missing)
	}
	return out, nil
}
