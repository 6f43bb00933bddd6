// Package policy implements the PEP's decision subsystem: a uniform
// Evaluator contract with a static allowlist fallback and an embedded
// Rego rule-engine variant, plus deterministic policy fingerprinting.
package policy

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Input is the structured query passed to an Evaluator.
type Input struct {
	Action  ActionInput  `json:"action"`
	Subject SubjectInput `json:"subject"`
	Context ContextInput `json:"context"`
}

// ActionInput describes the action being evaluated.
type ActionInput struct {
	Type     string       `json:"type"`
	Resource ResourceInput `json:"resource"`
}

// ResourceInput describes the outbound HTTP resource being requested.
type ResourceInput struct {
	URL    string `json:"url"`
	Host   string `json:"host"`
	Path   string `json:"path"`
	Method string `json:"method"`
	Scheme string `json:"scheme"`
}

// SubjectInput is reserved for a future caller-identity binding; both
// fields are currently fixed to "default".
type SubjectInput struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
}

// ContextInput carries request-time metadata for policy evaluation.
type ContextInput struct {
	Time  string `json:"time"`
	Stage string `json:"stage"`
	Mode  string `json:"mode"`
}

// NewInput builds a policy Input for a parsed outbound request. Method is
// upper-cased so that Rego rules can match it against HTTP method literals
// (e.g. input.action.resource.method == "GET") regardless of how the guest
// cased it on the wire.
func NewInput(rawURL, host, path, method, scheme string) Input {
	return Input{
		Action: ActionInput{
			Type: "http.request",
			Resource: ResourceInput{
				URL:    rawURL,
				Host:   host,
				Path:   path,
				Method: strings.ToUpper(method),
				Scheme: scheme,
			},
		},
		Subject: SubjectInput{
			UserID:      "default",
			WorkspaceID: "default",
		},
		Context: ContextInput{
			Time:  strconv.FormatInt(time.Now().Unix(), 10),
			Stage: "default",
			Mode:  "interactive",
		},
	}
}

// Constraints optionally narrows an allow decision.
type Constraints struct {
	MaxBytes        *uint64  `json:"max_bytes,omitempty"`
	AllowedDomains  []string `json:"allowed_domains,omitempty"`
	RateLimitPerMin *uint32  `json:"rate_limit_per_min,omitempty"`
}

// Decision is the result of one evaluation.
type Decision struct {
	Allow       bool
	Reason      string
	Constraints *Constraints
	DecisionID  string
	PolicyHash  string
}

// Evaluator is the uniform decision interface shared by every policy
// variant. The mediator is written once against this contract and chooses
// a concrete implementation at startup based on whether a policy directory
// is configured.
type Evaluator interface {
	Evaluate(ctx context.Context, input Input) (Decision, error)
	PolicyHash() string
}
