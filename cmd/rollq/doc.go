// Package main hosts the rollq CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into queue
// operations against the SQLite-backed store: enqueueing sessions, advancing
// and reordering associate queues, campus assignment, statistics, and
// configuration scaffolding. It centralizes configuration resolution and
// store setup so subcommands can focus on user experience instead of wiring.
package main
