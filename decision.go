package strata

import "context"

// Decision overrides privilege resolution for admin tools and tests.
//
// The decision mechanism has two layers:
//  1. Resolver-level: set with privilege.WithDecision at construction
//  2. Context-level: set with WithDecisionContext and honored only when the
//     resolver was built with privilege.WithContextDecision
//
// Context decisions are opt-in so a value placed on a request context by
// middleware cannot grant privileges to a resolver that did not ask for it.
type Decision int

type decisionContextKey struct{}

var decisionKey = decisionContextKey{}

const (
	// DecisionUnset means no override: resolve privileges from the store.
	DecisionUnset Decision = iota

	// DecisionAllow grants every privilege without a lookup.
	DecisionAllow

	// DecisionDeny refuses every privilege without a lookup.
	DecisionDeny
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionDeny:
		return "deny"
	default:
		return "unset"
	}
}

// WithDecisionContext returns a new context carrying decision.
func WithDecisionContext(ctx context.Context, decision Decision) context.Context {
	return context.WithValue(ctx, decisionKey, decision)
}

// GetDecisionContext retrieves the decision from ctx.
// Returns DecisionUnset if none is set.
func GetDecisionContext(ctx context.Context) Decision {
	if decision, ok := ctx.Value(decisionKey).(Decision); ok {
		return decision
	}
	return DecisionUnset
}
