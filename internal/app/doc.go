// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the planning lifecycle (load definitions,
// build one step graph per flow, report the submission order, export
// diagnostics), decoupled from any specific entrypoint like a CLI.
package app
