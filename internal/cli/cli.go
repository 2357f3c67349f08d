package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vk/flowplan/internal/app"
	"github.com/vk/flowplan/internal/planerr"
)

// Exit codes.
const (
	ExitFailure  = 1
	ExitUsage    = 2
	ExitPlanning = 3
)

// Version is set at build time.
var Version = "dev"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) error {
	return &ExitError{Code: ExitUsage, Message: fmt.Sprintf(format, args...)}
}

// Execute runs the command line and maps every failure to an *ExitError.
func Execute(ctx context.Context, args []string, outW, errW io.Writer) error {
	root := NewRootCommand(outW, errW)
	root.SetArgs(args)
	return classify(root.ExecuteContext(ctx))
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	if planerr.IsPlanning(err) {
		return &ExitError{Code: ExitPlanning, Message: err.Error()}
	}
	if strings.HasPrefix(err.Error(), "unknown command") {
		return &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	return &ExitError{Code: ExitFailure, Message: err.Error()}
}

// NewRootCommand builds the flowplan command tree.
func NewRootCommand(outW, errW io.Writer) *cobra.Command {
	var logLevel, logFormat string

	root := &cobra.Command{
		Use:   "flowplan",
		Short: "Compile pipeline definitions into ordered execution steps",
		Long: `flowplan reads pipeline definitions (HCL or YAML), partitions every flow
into execution steps at its taps, validates the result and prints the order
in which the steps would be submitted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(outW)
	root.SetErr(errW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError("%s", err.Error())
	})

	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")

	logging := func() (string, string) {
		return strings.ToLower(logLevel), strings.ToLower(logFormat)
	}
	root.AddCommand(
		newPlanCommand(outW, errW, logging),
		newValidateCommand(outW, errW, logging),
		newVersionCommand(outW),
	)
	return root
}

// planFlags are the flags shared by plan and validate.
type planFlags struct {
	vars       map[string]string
	format     string
	flows      []string
	permissive bool
}

func (f *planFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringToStringVar(&f.vars, "var", nil, "Override a definition variable (name=value). Repeatable.")
	cmd.Flags().StringVar(&f.format, "format", app.FormatAuto, "Definition format. Options: 'auto', 'hcl' or 'yaml'.")
	cmd.Flags().StringSliceVar(&f.flows, "flow", nil, "Plan only the named flows. Repeatable.")
	cmd.Flags().BoolVar(&f.permissive, "permissive", false, "Report illegal paths as split requests instead of rejecting them.")
}

func requirePaths(_ *cobra.Command, args []string) error {
	if len(args) == 0 {
		return usageError("at least one definition file or directory is required")
	}
	return nil
}

func newApp(outW, errW io.Writer, cfg app.Config) (*app.App, error) {
	appConfig, err := app.NewConfig(cfg)
	if err != nil {
		return nil, usageError("%s", err.Error())
	}
	return app.NewApp(outW, errW, appConfig, nil)
}

func newPlanCommand(outW, errW io.Writer, logging func() (string, string)) *cobra.Command {
	var (
		flags       planFlags
		output      string
		dotPath     string
		metricsPath string
		fail        []string
	)

	cmd := &cobra.Command{
		Use:   "plan PATH...",
		Short: "Build the step graph of every flow and print the submission order",
		Args:  requirePaths,
		RunE: func(cmd *cobra.Command, args []string) error {
			level, format := logging()
			a, err := newApp(outW, errW, app.Config{
				DefinitionPaths: args,
				Vars:            flags.vars,
				Format:          strings.ToLower(flags.format),
				Flows:           flags.flows,
				Permissive:      flags.permissive,
				Fail:            fail,
				Output:          strings.ToLower(output),
				DotPath:         dotPath,
				MetricsPath:     metricsPath,
				LogLevel:        level,
				LogFormat:       format,
			})
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", app.OutputText, "Report format. Options: 'text' or 'yaml'.")
	cmd.Flags().StringVar(&dotPath, "dot", "", "Write the step graph of each flow as a Graphviz DOT file.")
	cmd.Flags().StringVar(&metricsPath, "metrics-file", "", "Write planner metrics in Prometheus textfile format.")
	cmd.Flags().StringSliceVar(&fail, "fail", nil, "Simulate the failure of a step (by name or sink path) and show what is withdrawn. Repeatable.")
	return cmd
}

func newValidateCommand(outW, errW io.Writer, logging func() (string, string)) *cobra.Command {
	var flags planFlags

	cmd := &cobra.Command{
		Use:   "validate PATH...",
		Short: "Check that every flow compiles into a valid step graph",
		Args:  requirePaths,
		RunE: func(cmd *cobra.Command, args []string) error {
			level, format := logging()
			a, err := newApp(outW, errW, app.Config{
				DefinitionPaths: args,
				Vars:            flags.vars,
				Format:          strings.ToLower(flags.format),
				Flows:           flags.flows,
				Permissive:      flags.permissive,
				LogLevel:        level,
				LogFormat:       format,
			})
			if err != nil {
				return err
			}
			plans, err := a.Plan(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range plans {
				fmt.Fprintf(outW, "ok: flow %q (%d steps)\n", p.Flow, p.Graph.Len())
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newVersionCommand(outW io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the flowplan version",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintln(outW, "flowplan", Version)
		},
	}
}
