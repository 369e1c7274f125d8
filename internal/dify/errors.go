package dify

import "fmt"

// ErrorKind classifies workflow call failures.
type ErrorKind int

const (
	// ErrorKindTransport covers network failures and timeouts.
	ErrorKindTransport ErrorKind = iota
	// ErrorKindStatus is a non-2xx HTTP response.
	ErrorKindStatus
	// ErrorKindDecode is a response body that is not the expected JSON.
	ErrorKindDecode
	// ErrorKindRequest means the request could not be built.
	ErrorKindRequest
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindTransport:
		return "transport"
	case ErrorKindStatus:
		return "status"
	case ErrorKindDecode:
		return "decode"
	case ErrorKindRequest:
		return "request"
	default:
		return "unknown"
	}
}

// APIError describes a failed workflow run call.
type APIError struct {
	Kind       ErrorKind `json:"kind"`
	StatusCode int       `json:"status_code,omitempty"`
	Code       string    `json:"code,omitempty"`
	Message    string    `json:"message"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap exposes the underlying cause for errors.Unwrap compatibility.
func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Cause
}
