package providers

import (
	"net/http"
	"strings"

	"github.com/concordhq/concord/internal/apperr"
)

// FailoverReason categorizes why a provider request failed, enabling
// retry and failover logic independent of which backend produced it.
type FailoverReason string

const (
	FailoverBilling           FailoverReason = "billing"
	FailoverRateLimit         FailoverReason = "rate_limit"
	FailoverAuth              FailoverReason = "auth"
	FailoverTimeout           FailoverReason = "timeout"
	FailoverServerError       FailoverReason = "server_error"
	FailoverInvalidRequest    FailoverReason = "invalid_request"
	FailoverModelUnavailable  FailoverReason = "model_unavailable"
	FailoverContentFilter     FailoverReason = "content_filter"
	FailoverUnsupported       FailoverReason = "unsupported_capability"
	FailoverUnknown           FailoverReason = "unknown"
)

// IsRetryable reports whether retrying the same request may succeed.
func (r FailoverReason) IsRetryable() bool {
	switch r {
	case FailoverRateLimit, FailoverTimeout, FailoverServerError:
		return true
	default:
		return false
	}
}

// ShouldFailover reports whether the error warrants trying a different
// provider or model rather than retrying the same one.
func (r FailoverReason) ShouldFailover() bool {
	switch r {
	case FailoverBilling, FailoverAuth, FailoverModelUnavailable, FailoverUnsupported:
		return true
	default:
		return false
	}
}

// apperrKind maps a FailoverReason onto the shared error taxonomy.
func (r FailoverReason) apperrKind() apperr.Kind {
	switch r {
	case FailoverAuth:
		return apperr.KindAuth
	case FailoverInvalidRequest, FailoverUnsupported:
		return apperr.KindValidation
	case FailoverRateLimit:
		return apperr.KindCapacity
	default:
		return apperr.KindProvider
	}
}

// ProviderError is a structured error from an LLM provider, carrying the
// context retry/failover logic and debugging need.
type ProviderError struct {
	Reason    FailoverReason
	Provider  string
	Model     string
	Status    int
	Code      string
	Message   string
	RequestID string
	Cause     error
}

func (e *ProviderError) Error() string {
	var parts []string
	parts = append(parts, "["+string(e.Reason)+"]")
	if e.Provider != "" {
		parts = append(parts, e.Provider)
	}
	if e.Model != "" {
		parts = append(parts, "model="+e.Model)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// AsAppErr converts this ProviderError into the shared apperr.Error type.
func (e *ProviderError) AsAppErr() *apperr.Error {
	return apperr.Wrap(e.Reason.apperrKind(), "providers."+e.Provider, e, e.Message)
}

// NewProviderError builds a ProviderError from a raw cause, classifying it
// by message content.
func NewProviderError(provider, model string, cause error) *ProviderError {
	err := &ProviderError{Provider: provider, Model: model, Cause: cause, Reason: FailoverUnknown}
	if cause != nil {
		err.Message = cause.Error()
		err.Reason = ClassifyError(cause)
	}
	return err
}

// WithStatus attaches an HTTP status and reclassifies from it.
func (e *ProviderError) WithStatus(status int) *ProviderError {
	e.Status = status
	e.Reason = classifyStatusCode(status)
	return e
}

// WithCode attaches a provider-specific error code and reclassifies if the
// code is recognized.
func (e *ProviderError) WithCode(code string) *ProviderError {
	e.Code = code
	if reason := classifyErrorCode(code); reason != FailoverUnknown {
		e.Reason = reason
	}
	return e
}

// WithRequestID attaches the provider's request id for debugging.
func (e *ProviderError) WithRequestID(id string) *ProviderError {
	e.RequestID = id
	return e
}

// IsProviderError reports whether err's chain contains a *ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return asProviderError(err, &pe)
}

// GetProviderError extracts a *ProviderError from err's chain, if present.
func GetProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if asProviderError(err, &pe) {
		return pe, true
	}
	return nil, false
}

// ClassifyError inspects err's message and returns the matching
// FailoverReason. Used when a provider SDK surfaces only an error string.
func ClassifyError(err error) FailoverReason {
	if err == nil {
		return FailoverUnknown
	}
	s := strings.ToLower(err.Error())

	switch {
	case strings.Contains(s, "timeout"), strings.Contains(s, "deadline exceeded"), strings.Contains(s, "context deadline"):
		return FailoverTimeout
	case strings.Contains(s, "rate limit"), strings.Contains(s, "rate_limit"), strings.Contains(s, "too many requests"), strings.Contains(s, "429"):
		return FailoverRateLimit
	case strings.Contains(s, "unauthorized"), strings.Contains(s, "invalid api key"), strings.Contains(s, "authentication"), strings.Contains(s, "401"), strings.Contains(s, "403"):
		return FailoverAuth
	case strings.Contains(s, "billing"), strings.Contains(s, "payment"), strings.Contains(s, "quota"), strings.Contains(s, "insufficient"), strings.Contains(s, "402"):
		return FailoverBilling
	case strings.Contains(s, "content_filter"), strings.Contains(s, "content policy"), strings.Contains(s, "safety"), strings.Contains(s, "blocked"):
		return FailoverContentFilter
	case strings.Contains(s, "model not found"), strings.Contains(s, "model_not_found"), strings.Contains(s, "does not exist"), strings.Contains(s, "unavailable"):
		return FailoverModelUnavailable
	case strings.Contains(s, "internal server"), strings.Contains(s, "server error"), strings.Contains(s, "500"), strings.Contains(s, "502"), strings.Contains(s, "503"), strings.Contains(s, "504"):
		return FailoverServerError
	default:
		return FailoverUnknown
	}
}

func classifyStatusCode(status int) FailoverReason {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return FailoverAuth
	case status == http.StatusPaymentRequired:
		return FailoverBilling
	case status == http.StatusTooManyRequests:
		return FailoverRateLimit
	case status == http.StatusBadRequest:
		return FailoverInvalidRequest
	case status == http.StatusNotFound:
		return FailoverModelUnavailable
	case status >= 500:
		return FailoverServerError
	default:
		return FailoverUnknown
	}
}

func classifyErrorCode(code string) FailoverReason {
	switch strings.ToLower(code) {
	case "rate_limit_error", "rate_limit_exceeded":
		return FailoverRateLimit
	case "authentication_error", "invalid_api_key":
		return FailoverAuth
	case "billing_error", "insufficient_quota":
		return FailoverBilling
	case "model_not_found", "model_not_available":
		return FailoverModelUnavailable
	case "content_policy_violation", "content_filter":
		return FailoverContentFilter
	case "server_error", "internal_error":
		return FailoverServerError
	case "invalid_request_error":
		return FailoverInvalidRequest
	default:
		return FailoverUnknown
	}
}

// IsRetryable reports whether err should be retried against the same
// adapter, unwrapping a ProviderError if present.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if asProviderError(err, &pe) {
		return pe.Reason.IsRetryable()
	}
	return ClassifyError(err).IsRetryable()
}

// ShouldFailover reports whether err warrants trying a different adapter.
func ShouldFailover(err error) bool {
	var pe *ProviderError
	if asProviderError(err, &pe) {
		return pe.Reason.ShouldFailover()
	}
	return ClassifyError(err).ShouldFailover()
}

func asProviderError(err error, target **ProviderError) bool {
	for err != nil {
		if pe, ok := err.(*ProviderError); ok {
			*target = pe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
