package policy

import (
	"context"

	"github.com/google/uuid"

	"github.com/openpep/pepd/internal/ssrf"
)

// StaticAllowlist is the fallback evaluator used when no policy directory
// is configured. It treats an empty allowlist as deny-all; the RuleEngine
// variant is free to make a different choice for the same case (see
// SPEC_FULL.md's Open Question decisions) — this discrepancy is
// intentional and is not papered over here.
type StaticAllowlist struct {
	allowedDomains []string
}

// NewStaticAllowlist builds a StaticAllowlist over the given apex domains.
func NewStaticAllowlist(allowedDomains []string) *StaticAllowlist {
	return &StaticAllowlist{allowedDomains: allowedDomains}
}

// Evaluate implements Evaluator.
func (s *StaticAllowlist) Evaluate(_ context.Context, input Input) (Decision, error) {
	allow := ssrf.IsHostAllowed(input.Action.Resource.Host, s.allowedDomains)
	reason := "domain not allowlisted"
	if allow {
		reason = "domain allowlisted (static)"
	}
	return Decision{
		Allow:      allow,
		Reason:     reason,
		DecisionID: uuid.NewString(),
		PolicyHash: "",
	}, nil
}

// PolicyHash implements Evaluator.
func (s *StaticAllowlist) PolicyHash() string {
	return ""
}
