package memory

import (
	"github.com/agentloop/agentloop/core"
	"github.com/agentloop/agentloop/logging"
)

// perMessageOverhead accounts for role markers and separators each message
// adds on top of its content tokens.
const perMessageOverhead = 4

// Trimmer bounds the short-term context window sent to a model backend.
//
// Trim returns the largest suffix of the history that, together with the
// system prompt, fits the token budget. The returned window always begins on
// a user message so the turn structure stays valid for the model. Token
// counting failures fail open: the full untrimmed history is returned and
// the fallback is logged.
type Trimmer struct {
	counter TokenCounter
	budget  int
	logger  logging.Logger
}

// NewTrimmer constructs a Trimmer. A nil logger disables logging.
func NewTrimmer(counter TokenCounter, budget int, logger logging.Logger) *Trimmer {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Trimmer{counter: counter, budget: budget, logger: logger}
}

// Trim selects the context window for the given system prompt and history.
func (t *Trimmer) Trim(system string, history []core.Message) []core.Message {
	if len(history) == 0 {
		return history
	}

	systemTokens, err := t.counter.Count(system)
	if err != nil {
		t.logger.Warn("memory.trim.count_failed", "error", err.Error())
		return history
	}

	costs := make([]int, len(history))
	for i, m := range history {
		n, err := t.counter.Count(m.Content)
		if err != nil {
			t.logger.Warn("memory.trim.count_failed", "error", err.Error())
			return history
		}
		costs[i] = n + perMessageOverhead
	}

	total := systemTokens
	for _, c := range costs {
		total += c
	}
	if total <= t.budget {
		return history
	}

	// Suffix cost from each index, then the earliest user-message start that fits.
	suffix := make([]int, len(history)+1)
	for i := len(history) - 1; i >= 0; i-- {
		suffix[i] = suffix[i+1] + costs[i]
	}

	lastUser := -1
	for i, m := range history {
		if m.Role != core.RoleUser {
			continue
		}
		lastUser = i
		if systemTokens+suffix[i] <= t.budget {
			t.logger.Debug("memory.trim.window",
				"dropped", i,
				"kept", len(history)-i,
				"tokens", systemTokens+suffix[i],
			)
			return history[i:]
		}
	}

	if lastUser == -1 {
		t.logger.Warn("memory.trim.no_user_message", "messages", len(history))
		return history
	}

	// Even the final user turn exceeds the budget; keep it anyway so the
	// model has something to respond to.
	t.logger.Warn("memory.trim.over_budget",
		"tokens", systemTokens+suffix[lastUser],
		"budget", t.budget,
	)
	return history[lastUser:]
}
