// Package dispatch provides resilient invocation of a ranked list of model
// backends: per-backend retry with exponential backoff on transient errors,
// circular fallback across the registry, and a sticky cursor that keeps
// later calls on whichever backend last worked. Only total exhaustion of
// every backend surfaces to the caller.
package dispatch
