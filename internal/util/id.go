// Package util contains small internal helpers shared across packages.
package util

import "github.com/google/uuid"

// NewID generates a unique identifier for turns and tool calls.
func NewID() string { return uuid.NewString() }
