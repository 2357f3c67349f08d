// Package element defines the logical pipeline graph handed to the planner.
//
// Why a separate element graph?
//
// The planner never builds pipelines itself. An upstream component assembles
// sources, sinks, operators and grouping points into a directed graph and
// validates field schemas; this package only gives that graph a shape the
// step-graph builder can walk. Once built, a Graph is treated as read-only.
//
// Taps are the only elements with an identity outside the pipeline (a path or
// URI). A tap with outgoing scopes acts as a source, a tap with incoming scopes
// acts as a sink, and an intermediate (usually temporary) tap is both.
//
// Traps are error-capturing taps bound to a branch name. They are supplied as a
// separate registry alongside the graph and are not connected to it.
package element
