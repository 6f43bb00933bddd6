// Package wire defines the JSON envelopes exchanged between the guest and
// pepd over the framed stream transport.
package wire

// HeaderPair is a single (name, value) entry. A slice of pairs preserves
// ordering and duplicate header names, unlike a map.
type HeaderPair [2]string

// HttpRequest is the inbound envelope carried in a request frame.
type HttpRequest struct {
	Method      string       `json:"method"`
	URL         string       `json:"url"`
	Headers     []HeaderPair `json:"headers"`
	BodyBase64  *string      `json:"body_base64"`
}

// ErrorEnvelope describes why a request was rejected or failed.
type ErrorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HttpResponse is the outbound envelope carried in a response frame.
type HttpResponse struct {
	Status     uint16         `json:"status"`
	Headers    []HeaderPair   `json:"headers"`
	BodyBase64 *string        `json:"body_base64"`
	Error      *ErrorEnvelope `json:"error"`
}

// HealthStatus is returned in-band for the reserved "HEALTH" pseudo-method.
type HealthStatus struct {
	Status              string `json:"status"`
	Version             string `json:"version"`
	AllowedDomainsCount int    `json:"allowed_domains_count"`
	MaxRequestBytes     uint64 `json:"max_request_bytes"`
	MaxResponseBytes    uint64 `json:"max_response_bytes"`
}

// HealthMethod is the reserved method name that bypasses the mediator.
const HealthMethod = "HEALTH"

// Error codes, closed set per the wire protocol.
const (
	ErrInvalidMethod       = "invalid_method"
	ErrInvalidURL          = "invalid_url"
	ErrInvalidBody         = "invalid_body"
	ErrDeniedByPolicy      = "denied_by_policy"
	ErrSSRFBlocked         = "ssrf_blocked"
	ErrRedirectBlocked     = "redirect_blocked"
	ErrHTTPError           = "http_error"
	ErrConstraintViolation = "constraint_violation"
)

func errorResponse(status uint16, code, message string) HttpResponse {
	return HttpResponse{
		Status: status,
		Error:  &ErrorEnvelope{Code: code, Message: message},
	}
}

// ErrorResponse builds a rejection HttpResponse with status 0.
func ErrorResponse(code, message string) HttpResponse {
	return errorResponse(0, code, message)
}

// ErrorResponseWithStatus builds a rejection HttpResponse preserving an
// already-observed upstream status.
func ErrorResponseWithStatus(status uint16, code, message string) HttpResponse {
	return errorResponse(status, code, message)
}
