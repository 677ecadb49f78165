package advisor

import (
	"context"
	"fmt"
	"strings"

	"crypto-trade-bot-go/internal/models"

	"go.uber.org/zap"
)

// Arbiter selects which candidate signal to act on when several symbols
// propose non-hold actions in the same tick. The external advisory may
// only pick among the rule-generated candidates; it can never change a
// candidate's direction or its confidence. Every advisory failure falls
// back deterministically to the highest-strength candidate.
type Arbiter struct {
	client  AdvisoryClient
	logger  *zap.Logger
	enabled bool
}

// NewArbiter creates an arbiter. A nil client or enabled=false disables
// the advisory entirely; selection is then always deterministic.
func NewArbiter(client AdvisoryClient, enabled bool, logger *zap.Logger) *Arbiter {
	return &Arbiter{
		client:  client,
		logger:  logger,
		enabled: enabled && client != nil,
	}
}

// Choose returns the candidate to act on. Candidates must be non-hold
// signals in feed order; callers guarantee len(candidates) >= 1.
func (a *Arbiter) Choose(ctx context.Context, candidates []models.Signal) models.Signal {
	if len(candidates) == 1 {
		return candidates[0]
	}
	if !a.enabled {
		return strongest(candidates)
	}

	decision, err := a.client.Rank(ctx, buildSummary(candidates))
	if err != nil {
		a.logger.Warn("Advisory call failed, falling back to strongest candidate", zap.Error(err))
		return strongest(candidates)
	}

	chosen, ok := findCandidate(candidates, decision.Token)
	if !ok {
		a.logger.Warn("Advisory chose a token outside the candidate set, falling back",
			zap.String("token", decision.Token))
		return strongest(candidates)
	}

	if decision.Action != chosen.Action {
		// The advisory tried to override the rule-determined direction.
		// Discard the override but keep its token selection: the
		// candidate's own action and strength stand.
		a.logger.Warn("Advisory tried to override rule action, keeping rule action",
			zap.String("token", chosen.Token),
			zap.String("rule_action", chosen.Action),
			zap.String("advisory_action", decision.Action))
		return chosen
	}

	a.logger.Info("Advisory selected candidate",
		zap.String("token", chosen.Token),
		zap.String("action", chosen.Action),
		zap.Float64("strength", chosen.Strength),
		zap.String("advisory_reason", decision.Reason))

	if decision.Reason != "" {
		// Annotate the chosen signal without touching action/strength.
		chosen.Reasons = append(append([]string{}, chosen.Reasons...), "advisory: "+decision.Reason)
	}
	return chosen
}

// strongest is the deterministic fallback: highest rule-computed
// strength wins, earlier feed order breaking ties.
func strongest(candidates []models.Signal) models.Signal {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Strength > best.Strength {
			best = c
		}
	}
	return best
}

func findCandidate(candidates []models.Signal, token string) (models.Signal, bool) {
	for _, c := range candidates {
		if strings.EqualFold(c.Token, token) {
			return c, true
		}
	}
	return models.Signal{}, false
}

// buildSummary renders the candidate set for the advisory prompt.
func buildSummary(candidates []models.Signal) string {
	var b strings.Builder
	b.WriteString("Competing trade candidates this cycle. Pick exactly one to act on and answer with a single JSON object ")
	b.WriteString(`{"token","action","confidence","reason"}. The action must match the candidate's listed action.` + "\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "- %s %s strength=%.0f reasons: %s\n",
			c.Token, c.Action, c.Strength, strings.Join(c.Reasons, "; "))
	}
	return b.String()
}
