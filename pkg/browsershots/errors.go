package browsershots

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication means the sign-in response had no logout link.
	ErrAuthentication = errors.New("browsershots authentication failed")
	// ErrRenewal means the extend endpoint did not report success.
	ErrRenewal = errors.New("browsershots renewal rejected")
)

// UnexpectedStatusError is returned when a page that must answer 200 does not.
type UnexpectedStatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s %s", e.StatusCode, e.Method, e.URL)
}

// RejectionError is a business-level failure inside an otherwise successful
// HTTP exchange. Err is ErrAuthentication or ErrRenewal.
type RejectionError struct {
	Err        error
	URL        string
	StatusCode int
	Body       string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%v (status %d from %s)", e.Err, e.StatusCode, e.URL)
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}
