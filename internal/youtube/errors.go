package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Sentinel errors for the outcome classes of a remote call.
var (
	ErrQuotaExhausted = errors.New("youtube: quota exhausted")
	ErrNotFound       = errors.New("youtube: not found")
	ErrConflict       = errors.New("youtube: conflict")
	ErrUnauthorized   = errors.New("youtube: unauthorized")
	ErrTransient      = errors.New("youtube: transient error")
	ErrFatal          = errors.New("youtube: request failed")
)

// Kind is the outcome class of a remote call.
type Kind int

const (
	KindOK Kind = iota
	KindQuotaExhausted
	KindNotFound
	KindConflict
	KindTransient
	KindAuth
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindQuotaExhausted:
		return "quota_exhausted"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	case KindAuth:
		return "auth"
	default:
		return "fatal"
	}
}

// KindOf maps err to its outcome class. Errors that did not pass through
// the boundary are fatal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrQuotaExhausted):
		return KindQuotaExhausted
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrTransient):
		return KindTransient
	case errors.Is(err, ErrUnauthorized):
		return KindAuth
	default:
		return KindFatal
	}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool { return KindOf(err) == KindTransient }

// APIError is a classified remote failure.
// Use errors.As to get at the method and status:
//
//	var apiErr *youtube.APIError
//	if errors.As(err, &apiErr) {
//		log.Printf("%s failed with %d (%s)", apiErr.Method, apiErr.Status, apiErr.Reason)
//	}
type APIError struct {
	// Method is the remote method name, e.g. "videos.list".
	Method string
	// Status is the HTTP status, zero for transport failures.
	Status int
	// Reason is the platform's first error reason, e.g. "quotaExceeded".
	Reason string
	// Err is one of the sentinel errors above.
	Err error
	// Cause is the underlying transport error, if any.
	Cause error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Method, e.Err)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d", e.Status)
		if e.Reason != "" {
			msg += ", " + e.Reason
		}
		msg += ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *APIError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

var quotaReasons = map[string]bool{
	"quotaExceeded":      true,
	"dailyLimitExceeded": true,
}

var rateReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
}

var notFoundReasons = map[string]bool{
	"playlistNotFound":     true,
	"channelNotFound":      true,
	"videoNotFound":        true,
	"playlistItemNotFound": true,
	"subscriptionNotFound": true,
	"playlistIdNotFound":   true,
	"channelIdNotFound":    true,
	"videoIdNotFound":      true,
}

// Classify converts a transport error from method into an *APIError.
// It returns nil for a nil error and passes already classified errors through.
func Classify(method string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Method: method, Err: ErrFatal, Cause: err}
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		// Connection resets, DNS failures and the like.
		return &APIError{Method: method, Err: ErrTransient, Cause: err}
	}

	reason := ""
	for _, item := range gerr.Errors {
		if item.Reason != "" {
			reason = item.Reason
			break
		}
	}
	out := &APIError{Method: method, Status: gerr.Code, Reason: reason, Cause: err}

	switch {
	case quotaReasons[reason]:
		out.Err = ErrQuotaExhausted
	case rateReasons[reason]:
		out.Err = ErrTransient
	case gerr.Code == http.StatusUnauthorized:
		out.Err = ErrUnauthorized
	case gerr.Code == http.StatusNotFound || notFoundReasons[reason]:
		out.Err = ErrNotFound
	case gerr.Code == http.StatusConflict:
		out.Err = ErrConflict
	case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
		out.Err = ErrTransient
	default:
		out.Err = ErrFatal
	}
	return out
}

func notFound(method, what string) error {
	return &APIError{Method: method, Status: http.StatusNotFound, Err: ErrNotFound, Cause: errors.New(what)}
}
