// Package testutil holds the harness shared by the end-to-end planning tests:
// it writes definition files to a temporary directory, runs the app against
// them and captures the report and the logs.
package testutil
