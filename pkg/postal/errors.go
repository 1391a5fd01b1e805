package postal

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// CarrierError represents a fault reported by a remote carrier backend, or a
// malformed/unexpected response from one. It is the fallback bucket every
// backend maps unrecognized remote codes into.
type CarrierError struct {
	Carrier string
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *CarrierError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error (%s): %s: %v", e.Carrier, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Carrier, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *CarrierError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for CarrierError by remote error code.
func (e *CarrierError) Is(target error) bool {
	t, ok := target.(*CarrierError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewCarrierError creates a new CarrierError.
func NewCarrierError(carrier, code, message string) *CarrierError {
	return &CarrierError{
		Carrier: carrier,
		Code:    code,
		Message: message,
	}
}

// WithCause adds a cause to the error.
func (e *CarrierError) WithCause(err error) *CarrierError {
	e.Cause = err
	return e
}

// AddressError indicates an address is structurally invalid or a carrier
// rejected specific fields. Fields maps field name to rejection message so
// callers can produce targeted feedback.
type AddressError struct {
	Carrier string
	Message string
	Fields  map[string]string
}

func (e *AddressError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "invalid address"
	}
	prefix := ""
	if e.Carrier != "" {
		prefix = e.Carrier + ": "
	}
	if len(e.Fields) == 0 {
		return prefix + msg
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return prefix + msg + " (" + strings.Join(parts, "; ") + ")"
}

// NotSupportedError indicates the requested operation, service, package type,
// or route is not offered at all. It distinguishes "will never work" from a
// transient carrier fault.
type NotSupportedError struct {
	Carrier string
	What    string
}

func (e *NotSupportedError) Error() string {
	if e.Carrier == "" {
		return "not supported: " + e.What
	}
	return e.Carrier + ": not supported: " + e.What
}

// ExceedsLimitsError indicates a request exceeds a service's physical limits.
// Callers may catch it and try a different service instead of aborting.
type ExceedsLimitsError struct {
	Carrier string
	Limit   string
	Message string
}

func (e *ExceedsLimitsError) Error() string {
	return fmt.Sprintf("%s: exceeds %s limit: %s", e.Carrier, e.Limit, e.Message)
}

// ConfigurationError indicates malformed or incomplete backend configuration.
// It is only produced at construction time, never per request.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Message
}

// ErrCurrencyMismatch is returned when summing monetary values whose
// currencies genuinely differ.
var ErrCurrencyMismatch = errors.New("currency mismatch")

// IsNotSupported returns true if the error means the operation is not offered.
func IsNotSupported(err error) bool {
	var target *NotSupportedError
	return errors.As(err, &target)
}

// IsExceedsLimits returns true if the error reports a physical limit breach.
func IsExceedsLimits(err error) bool {
	var target *ExceedsLimitsError
	return errors.As(err, &target)
}

// IsAddressError returns true if the error carries per-field address feedback.
func IsAddressError(err error) bool {
	var target *AddressError
	return errors.As(err, &target)
}
