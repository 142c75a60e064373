package ipm

import (
	"errors"
	"fmt"
)

// Gateway error codes
const (
	ErrCodeInvalidDocument = "INVALID_DOCUMENT"
	ErrCodeSignature       = "SIGNATURE"
	ErrCodeTransport       = "TRANSPORT"
	ErrCodeOutput          = "OUTPUT"
)

// ErrGateway matches any *GatewayError via errors.Is
var ErrGateway = errors.New("gateway error")

// GatewayError is returned when a document could not be delivered to the gateway.
// A delivered document that the gateway rejected is not an error: it is reported
// through SubmitResult.Success and SubmitResult.Messages.
type GatewayError struct {
	Code    string
	Mode    string
	Message string
	Cause   error
}

func (e *GatewayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s gateway: %s (%v)", e.Code, e.Mode, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s gateway: %s", e.Code, e.Mode, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Cause
}

func (e *GatewayError) Is(target error) bool {
	return target == ErrGateway
}

// NewGatewayError creates a new gateway error
func NewGatewayError(code, mode, message string, cause error) *GatewayError {
	return &GatewayError{
		Code:    code,
		Mode:    mode,
		Message: message,
		Cause:   cause,
	}
}
