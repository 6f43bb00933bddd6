// Package mediator implements the request mediation pipeline (C6): the
// staged validation and dispatch sequence that turns one inbound
// wire.HttpRequest into a wire.HttpResponse, auditing exactly once per
// terminated attempt.
package mediator

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/openpep/pepd/internal/audit"
	"github.com/openpep/pepd/internal/config"
	"github.com/openpep/pepd/internal/logging"
	"github.com/openpep/pepd/internal/policy"
	"github.com/openpep/pepd/internal/ssrf"
	"github.com/openpep/pepd/internal/telemetry/otel"
	"github.com/openpep/pepd/internal/wire"
)

var log = logging.New("mediator")

// Mediator composes the SSRF guard, policy evaluator, HTTP client and audit
// writer to serve one request at a time.
type Mediator struct {
	cfg         config.PepConfig
	evaluator   policy.Evaluator
	auditLog    *audit.Writer
	client      *http.Client
	instruments *otel.MediationInstruments

	// checkPublicHost defaults to ssrf.EnsurePublicHost. Tests substitute it
	// the same way proxy.MITMProxy substitutes its tlsDialer field, so the
	// egress filter itself stays unexercised by loopback-only test servers.
	checkPublicHost func(ctx context.Context, host string) error
}

// New builds a Mediator. evaluator is the policy variant chosen at startup
// (StaticAllowlist when no policy directory is configured, RuleEngine
// otherwise); both satisfy policy.Evaluator and the mediator is written
// once against that contract. instruments may be nil, in which case the
// pipeline runs unobserved.
func New(cfg config.PepConfig, evaluator policy.Evaluator, auditLog *audit.Writer, instruments *otel.MediationInstruments) *Mediator {
	return &Mediator{
		cfg:             cfg,
		evaluator:       evaluator,
		auditLog:        auditLog,
		client:          newHTTPClient(),
		instruments:     instruments,
		checkPublicHost: ssrf.EnsurePublicHost,
	}
}

// Mediate wraps mediate with the span/metric recording described by
// MediationInstruments, then delegates the actual pipeline. It never
// returns an error: every outcome, allowed or rejected, is represented in
// the returned HttpResponse and has already been audited (I1).
func (m *Mediator) Mediate(ctx context.Context, req wire.HttpRequest) wire.HttpResponse {
	parsedHost, parsedScheme := peekHostScheme(req.URL)
	handle, ctx := m.instruments.Start(ctx, otel.MediationInfo{
		Method: req.Method,
		Host:   parsedHost,
		Scheme: parsedScheme,
	})
	resp := m.mediate(ctx, req)
	decision := "allow"
	if resp.Error != nil {
		decision = resp.Error.Code
	}
	m.instruments.Finish(handle, resp.Status, decision)
	return resp
}

// peekHostScheme best-effort parses a request URL purely to attach
// telemetry attributes before the pipeline has run; parse failures here are
// not reported, since mediate performs the authoritative parse and error
// reporting.
func peekHostScheme(raw string) (host, scheme string) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", ""
	}
	return strings.ToLower(parsed.Hostname()), parsed.Scheme
}

// mediate runs the staged pipeline for one request.
func (m *Mediator) mediate(ctx context.Context, req wire.HttpRequest) wire.HttpResponse {
	if !isValidMethod(req.Method) {
		return m.reject(req, sanitizeURLString(req.URL), 0, 0, wire.ErrInvalidMethod, "invalid HTTP method", 0, "", "")
	}

	parsed, err := url.Parse(req.URL)
	if err != nil {
		return m.reject(req, sanitizeURLString(req.URL), 0, 0, wire.ErrInvalidURL, err.Error(), 0, "", "")
	}

	if !ssrf.IsSchemeAllowed(parsed.Scheme) {
		return m.reject(req, sanitizeURL(parsed), 0, 0, wire.ErrInvalidURL, "unsupported URL scheme", 0, "", "")
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return m.reject(req, sanitizeURL(parsed), 0, 0, wire.ErrInvalidURL, "missing host", 0, "", "")
	}

	decision, err := m.evaluator.Evaluate(ctx, policy.NewInput(parsed.String(), host, parsed.Path, req.Method, parsed.Scheme))
	if err != nil {
		log.Printf("policy evaluation error for %s: %v", host, err)
		return m.reject(req, sanitizeURL(parsed), 0, 0, wire.ErrDeniedByPolicy, err.Error(), 0, "", "")
	}
	if !decision.Allow {
		return m.reject(req, sanitizeURL(parsed), 0, 0, wire.ErrDeniedByPolicy, "domain not allowlisted", 0, decision.DecisionID, decision.PolicyHash)
	}

	if err := m.checkPublicHost(ctx, host); err != nil {
		return m.reject(req, sanitizeURL(parsed), 0, 0, wire.ErrSSRFBlocked, err.Error(), 0, decision.DecisionID, decision.PolicyHash)
	}

	var bodyBytes []byte
	if req.BodyBase64 != nil {
		decoded, err := base64.StdEncoding.DecodeString(*req.BodyBase64)
		if err != nil {
			return m.reject(req, sanitizeURL(parsed), 0, 0, wire.ErrInvalidBody, fmt.Sprintf("base64 decode: %v", err), 0, decision.DecisionID, decision.PolicyHash)
		}
		if uint64(len(decoded)) > m.cfg.MaxRequestBytes {
			return m.reject(req, sanitizeURL(parsed), 0, 0, wire.ErrConstraintViolation, "request body exceeds max bytes", 0, decision.DecisionID, decision.PolicyHash)
		}
		bodyBytes = decoded
	}
	requestBytes := len(bodyBytes)

	currentURL := parsed
	var redirects uint32

	for {
		var bodyReader *bytes.Reader
		if bodyBytes != nil {
			bodyReader = bytes.NewReader(bodyBytes)
		}

		var httpReq *http.Request
		if bodyReader != nil {
			httpReq, err = http.NewRequestWithContext(ctx, req.Method, currentURL.String(), bodyReader)
		} else {
			httpReq, err = http.NewRequestWithContext(ctx, req.Method, currentURL.String(), nil)
		}
		if err != nil {
			return m.reject(req, sanitizeURL(currentURL), 0, requestBytes, wire.ErrHTTPError, err.Error(), redirects, decision.DecisionID, decision.PolicyHash)
		}
		for _, h := range req.Headers {
			httpReq.Header.Add(h[0], h[1])
		}

		resp, err := m.client.Do(httpReq)
		if err != nil {
			return m.reject(req, sanitizeURL(currentURL), 0, requestBytes, wire.ErrHTTPError, err.Error(), redirects, decision.DecisionID, decision.PolicyHash)
		}

		if isRedirectStatus(resp.StatusCode) {
			status := uint16(resp.StatusCode)
			resp.Body.Close()

			if redirects >= m.cfg.MaxRedirects {
				return m.reject(req, sanitizeURL(currentURL), status, requestBytes, wire.ErrRedirectBlocked, "redirect limit exceeded", redirects, decision.DecisionID, decision.PolicyHash)
			}

			location := resp.Header.Get("Location")
			if location == "" {
				return m.reject(req, sanitizeURL(currentURL), status, requestBytes, wire.ErrRedirectBlocked, "missing Location header", redirects, decision.DecisionID, decision.PolicyHash)
			}

			nextURL, err := currentURL.Parse(location)
			if err != nil {
				return m.reject(req, sanitizeURL(currentURL), status, requestBytes, wire.ErrRedirectBlocked, "invalid redirect URL", redirects, decision.DecisionID, decision.PolicyHash)
			}

			if nextURL.Scheme != currentURL.Scheme {
				return m.reject(req, sanitizeURL(currentURL), status, requestBytes, wire.ErrRedirectBlocked, "scheme change blocked", redirects, decision.DecisionID, decision.PolicyHash)
			}

			nextHost := strings.ToLower(nextURL.Hostname())
			if nextHost == "" {
				return m.reject(req, sanitizeURL(currentURL), status, requestBytes, wire.ErrRedirectBlocked, "redirect missing host", redirects, decision.DecisionID, decision.PolicyHash)
			}

			nextDecision, err := m.evaluator.Evaluate(ctx, policy.NewInput(nextURL.String(), nextHost, nextURL.Path, req.Method, nextURL.Scheme))
			if err != nil || !nextDecision.Allow {
				return m.reject(req, sanitizeURL(currentURL), status, requestBytes, wire.ErrRedirectBlocked, "redirect domain not allowlisted", redirects, decision.DecisionID, decision.PolicyHash)
			}

			if err := m.checkPublicHost(ctx, nextHost); err != nil {
				return m.reject(req, sanitizeURL(currentURL), status, requestBytes, wire.ErrSSRFBlocked, err.Error(), redirects, decision.DecisionID, decision.PolicyHash)
			}

			redirects++
			currentURL = nextURL
			decision = nextDecision
			continue
		}

		status := uint16(resp.StatusCode)
		headers := collectHeaders(resp.Header)

		body, err := readWithCap(resp.Body, m.cfg.MaxResponseBytes)
		resp.Body.Close()
		if err != nil {
			return m.reject(req, sanitizeURL(currentURL), status, requestBytes, wire.ErrConstraintViolation, err.Error(), redirects, decision.DecisionID, decision.PolicyHash)
		}

		encoded := base64.StdEncoding.EncodeToString(body)
		m.auditLog.Append(audit.NewEntry(req.Method, sanitizeURL(currentURL), status, "", requestBytes, len(body), redirects, decision.PolicyHash, decision.DecisionID))

		return wire.HttpResponse{
			Status:     status,
			Headers:    headers,
			BodyBase64: &encoded,
		}
	}
}

// reject finalizes a rejected or failed attempt: it writes exactly one
// audit record and returns the corresponding error HttpResponse, preserving
// an already-observed upstream status where one exists.
func (m *Mediator) reject(req wire.HttpRequest, sanitizedURL string, status uint16, requestBytes int, code, message string, redirects uint32, decisionID, policyHash string) wire.HttpResponse {
	m.auditLog.Append(audit.NewEntry(req.Method, sanitizedURL, status, code, requestBytes, 0, redirects, policyHash, decisionID))
	if status != 0 {
		return wire.ErrorResponseWithStatus(status, code, message)
	}
	return wire.ErrorResponse(code, message)
}

func isRedirectStatus(status int) bool {
	return status >= 300 && status < 400
}

// collectHeaders flattens an http.Header into ordered pairs, sorted by
// header name so that the emitted envelope is deterministic.
func collectHeaders(h http.Header) []wire.HeaderPair {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]wire.HeaderPair, 0, len(h))
	for _, name := range names {
		for _, v := range h[name] {
			pairs = append(pairs, wire.HeaderPair{name, v})
		}
	}
	return pairs
}
