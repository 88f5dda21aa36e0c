// Package memory provides the two memory tiers of an agent: token-budgeted
// trimming of the in-flight conversation window, and a long-term fact store
// populated asynchronously after each turn.
package memory
