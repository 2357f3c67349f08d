package hcl

import "github.com/hashicorp/hcl/v2"

// variablesRoot decodes the variable blocks of a file and leaves the rest
// for the second pass.
type variablesRoot struct {
	Variables []*variableBlock `hcl:"variable,block"`
	Remain    hcl.Body         `hcl:",remain"`
}

// flowsRoot decodes everything that is left once variables are known.
type flowsRoot struct {
	Flows []*flowBlock `hcl:"flow,block"`
}

type variableBlock struct {
	Name        string         `hcl:"name,label"`
	Description string         `hcl:"description,optional"`
	Default     hcl.Expression `hcl:"default,optional"`
}

type flowBlock struct {
	Name      string           `hcl:"name,label"`
	Taps      []*tapBlock      `hcl:"tap,block"`
	Operators []*operatorBlock `hcl:"operator,block"`
	Groups    []*groupBlock    `hcl:"group,block"`
	Traps     []*trapBlock     `hcl:"trap,block"`
}

type tapBlock struct {
	Name      string   `hcl:"name,label"`
	Path      string   `hcl:"path,optional"`
	Temporary bool     `hcl:"temporary,optional"`
	Priority  int      `hcl:"priority,optional"`
	From      []string `hcl:"from,optional"`
}

type operatorBlock struct {
	Name   string   `hcl:"name,label"`
	Branch string   `hcl:"branch,optional"`
	From   []string `hcl:"from,optional"`
}

type groupBlock struct {
	Name   string   `hcl:"name,label"`
	Branch string   `hcl:"branch,optional"`
	From   []string `hcl:"from,optional"`
}

type trapBlock struct {
	Branch string `hcl:"branch,label"`
	Tap    string `hcl:"tap"`
}
