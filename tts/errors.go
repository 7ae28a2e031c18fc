package tts

import (
	"errors"
	"fmt"
)

// Common errors for the read-aloud pipeline.
var (
	// Input errors
	ErrSelectionEmpty = errors.New("no text selected")
	ErrEmptyMarkup    = errors.New("empty markup provided")

	// Synthesis errors
	ErrQuotaExceeded = errors.New("synthesis quota exceeded")
	ErrAuth          = errors.New("synthesis service rejected the credentials")
	ErrTimeout       = errors.New("synthesis request timed out")
	ErrService       = errors.New("synthesis service error")

	// Engine errors
	ErrNoEngine       = errors.New("no speech engine configured")
	ErrNotSupported   = errors.New("operation not supported by this engine")
	ErrEngineNotFound = errors.New("speech command not found")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ErrorCode identifies specific error types.
type ErrorCode string

const (
	CodeSelectionEmpty ErrorCode = "SELECTION_EMPTY"
	CodeInvalidInput   ErrorCode = "INVALID_INPUT"
	CodeQuotaExceeded  ErrorCode = "QUOTA_EXCEEDED"
	CodeAuth           ErrorCode = "AUTH"
	CodeTimeout        ErrorCode = "TIMEOUT"
	CodeService        ErrorCode = "SERVICE"
)

var codeSentinels = map[ErrorCode]error{
	CodeSelectionEmpty: ErrSelectionEmpty,
	CodeInvalidInput:   ErrEmptyMarkup,
	CodeQuotaExceeded:  ErrQuotaExceeded,
	CodeAuth:           ErrAuth,
	CodeTimeout:        ErrTimeout,
	CodeService:        ErrService,
}

// TTSError is a typed failure with context. errors.Is matches it against the
// sentinel of its code as well as its cause.
type TTSError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// NewTTSError creates a new error with context.
func NewTTSError(code ErrorCode, message string, cause error) *TTSError {
	return &TTSError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Error implements the error interface.
func (e *TTSError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *TTSError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel for the error's code.
func (e *TTSError) Is(target error) bool {
	s, ok := codeSentinels[e.Code]
	return ok && s == target
}

// WithContext adds context to the error.
func (e *TTSError) WithContext(key string, value interface{}) *TTSError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsSynthesisFailure reports whether err came from the remote synthesis
// service, in which case the local engine may take over.
func IsSynthesisFailure(err error) bool {
	return errors.Is(err, ErrQuotaExceeded) ||
		errors.Is(err, ErrAuth) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrService)
}
