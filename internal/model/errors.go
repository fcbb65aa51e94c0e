package model

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// DecodeError reports image bytes that could not be decoded.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DetectionFault reports a failure of the detection capability.
type DetectionFault struct {
	Err error
}

func (e *DetectionFault) Error() string {
	return fmt.Sprintf("detection failed: %v", e.Err)
}

func (e *DetectionFault) Unwrap() error { return e.Err }

// StorageFault reports a failed upload attempt against one backend.
type StorageFault struct {
	Backend string
	Err     error
}

func (e *StorageFault) Error() string {
	return fmt.Sprintf("upload to %s failed: %v", e.Backend, e.Err)
}

func (e *StorageFault) Unwrap() error { return e.Err }

// TransportFault reports a broken delivery channel (stream read, broker).
type TransportFault struct {
	Transport Transport
	Err       error
}

func (e *TransportFault) Error() string {
	return fmt.Sprintf("%s transport fault: %v", e.Transport, e.Err)
}

func (e *TransportFault) Unwrap() error { return e.Err }

// ErrUnsupportedMediaType is returned for HTTP bodies that are neither multipart nor JSON.
var ErrUnsupportedMediaType = errors.New("Unsupported Content-Type")

// ErrTransportMismatch is returned when a responder does not match the frame's transport.
var ErrTransportMismatch = errors.New("responder transport does not match frame transport")

// NewValidationError builds a ValidationError.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsDecode reports whether err is, or wraps, a DecodeError.
func IsDecode(err error) bool {
	var d *DecodeError
	return errors.As(err, &d)
}

// IsDetection reports whether err is, or wraps, a DetectionFault.
func IsDetection(err error) bool {
	var d *DetectionFault
	return errors.As(err, &d)
}

// IsTransport reports whether err is, or wraps, a TransportFault.
func IsTransport(err error) bool {
	var t *TransportFault
	return errors.As(err, &t)
}

// IsRetryable reports faults caused by a bounded timeout expiring.
func IsRetryable(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
