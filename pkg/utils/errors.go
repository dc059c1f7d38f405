package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures raised while running a search
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindSessionStart     ErrorKind = "session_start"
	KindSessionClosed    ErrorKind = "session_closed"
	KindNavigation       ErrorKind = "navigation"
	KindBlocked          ErrorKind = "blocked"
	KindExtractionSchema ErrorKind = "extraction_schema"
	KindFailureThreshold ErrorKind = "failure_threshold"
)

// SearchError represents a typed application error
type SearchError struct {
	Kind    ErrorKind `json:"kind"`
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Detail  string    `json:"detail,omitempty"`
	URL     string    `json:"url,omitempty"`
	Err     error     `json:"-"`
}

func (e *SearchError) Error() string {
	msg := e.Message
	if e.URL != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.URL)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

// Is matches any SearchError of the same kind, so the sentinels below work with errors.Is
func (e *SearchError) Is(target error) bool {
	t, ok := target.(*SearchError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks
var (
	ErrValidation       = &SearchError{Kind: KindValidation}
	ErrSessionStart     = &SearchError{Kind: KindSessionStart}
	ErrSessionClosed    = &SearchError{Kind: KindSessionClosed}
	ErrNavigation       = &SearchError{Kind: KindNavigation}
	ErrBlocked          = &SearchError{Kind: KindBlocked}
	ErrExtractionSchema = &SearchError{Kind: KindExtractionSchema}
	ErrFailureThreshold = &SearchError{Kind: KindFailureThreshold}
)

func NewValidationError(detail string) *SearchError {
	return &SearchError{
		Kind:    KindValidation,
		Code:    http.StatusBadRequest,
		Message: "Validation failed",
		Detail:  detail,
	}
}

func NewSessionStartError(err error) *SearchError {
	return &SearchError{
		Kind:    KindSessionStart,
		Code:    http.StatusBadGateway,
		Message: "Browser session failed to start",
		Err:     err,
	}
}

// NewSessionClosedError is returned when op is attempted on a terminated session
func NewSessionClosedError(op string) *SearchError {
	return &SearchError{
		Kind:    KindSessionClosed,
		Code:    http.StatusInternalServerError,
		Message: "Browser session is closed",
		Detail:  op,
	}
}

func NewNavigationError(url string, err error) *SearchError {
	return &SearchError{
		Kind:    KindNavigation,
		Code:    http.StatusBadGateway,
		Message: "Navigation failed",
		URL:     url,
		Err:     err,
	}
}

// NewBlockedError reports a bot-detection or captcha page; signature names what matched
func NewBlockedError(url, signature string) *SearchError {
	return &SearchError{
		Kind:    KindBlocked,
		Code:    http.StatusBadGateway,
		Message: "Page blocked by bot detection",
		Detail:  signature,
		URL:     url,
	}
}

func NewExtractionSchemaError(url, detail string) *SearchError {
	return &SearchError{
		Kind:    KindExtractionSchema,
		Code:    http.StatusUnprocessableEntity,
		Message: "Listing page layout not recognised",
		Detail:  detail,
		URL:     url,
	}
}

// NewFailureThresholdError wraps the last page failure of a search that produced nothing
func NewFailureThresholdError(last error) *SearchError {
	return &SearchError{
		Kind:    KindFailureThreshold,
		Code:    http.StatusUnprocessableEntity,
		Message: "Too many consecutive page failures",
		Err:     last,
	}
}

// StatusCode returns the HTTP status for err, defaulting to 500
func StatusCode(err error) int {
	var se *SearchError
	if errors.As(err, &se) && se.Code != 0 {
		return se.Code
	}
	return http.StatusInternalServerError
}
