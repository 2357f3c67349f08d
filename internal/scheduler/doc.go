// Package scheduler tracks the submission state of a built step graph.
//
// It executes nothing. A caller hands out the steps Tracker.Ready returns,
// reports back what happened, and the tracker withdraws every downstream
// step of a failure so nothing is submitted on top of a missing dataset.
package scheduler
