// Package runner is the entry point for executing conversational turns. It
// restores thread state from checkpoints, serializes turns per thread, runs
// the flow graph, and hands finished turns to the background memory updater.
package runner
