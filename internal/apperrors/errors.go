package apperrors

// =============================================================================
// Error Codes
// =============================================================================

type ErrorCode string

const (
	ErrorCodeInternalError     ErrorCode = "INTERNAL_ERROR"
	ErrorCodeValidationError   ErrorCode = "VALIDATION_ERROR"
	ErrorCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrorCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrorCodeTransportError    ErrorCode = "TRANSPORT_ERROR"
	ErrorCodeAuthError         ErrorCode = "AUTH_ERROR"
	ErrorCodeProtocolError     ErrorCode = "PROTOCOL_ERROR"
	ErrorCodeTargetUnavailable ErrorCode = "TARGET_UNAVAILABLE"
	ErrorCodeRequestTimeout    ErrorCode = "REQUEST_TIMEOUT"
	ErrorCodeNotConnected      ErrorCode = "NOT_CONNECTED"
	ErrorCodeSyncDisabled      ErrorCode = "SYNC_DISABLED"
)

// ErrorBody is the serialized error payload.
type ErrorBody struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// AppError is the base error type for HTTP responses.
type AppError struct {
	Code       ErrorCode
	Message    string
	StatusCode int
	Details    map[string]any
}

func (err *AppError) Error() string {
	return err.Message
}

func (err *AppError) ErrorBody() ErrorBody {
	body := ErrorBody{
		Code:    err.Code,
		Message: err.Message,
	}
	if err.Details != nil {
		body.Details = err.Details
	}
	return body
}

func NewAppError(code ErrorCode, message string, statusCode int, details map[string]any) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Details:    details,
	}
}

func NewValidationError(message string, details map[string]any) *AppError {
	return NewAppError(ErrorCodeValidationError, message, 400, details)
}

func NewNotFoundError(message string, details map[string]any) *AppError {
	return NewAppError(ErrorCodeNotFound, message, 404, details)
}

func NewUnauthorizedError(message string) *AppError {
	return NewAppError(ErrorCodeUnauthorized, message, 401, nil)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrorCodeInternalError, message, 500, nil)
}

// NewTransportError reports a send or round trip that failed at the
// connection layer. Retried with backoff by the hub client; callers of the
// status API see it once and may re-issue.
func NewTransportError(message string) *AppError {
	return NewAppError(ErrorCodeTransportError, message, 502, nil)
}

// NewAuthError reports that sync is paused until the user re-authenticates.
func NewAuthError() *AppError {
	return NewAppError(ErrorCodeAuthError, "authentication required, device sync paused", 401, nil)
}

// NewProtocolError reports a malformed message. Never fatal to the session.
func NewProtocolError(message string) *AppError {
	return NewAppError(ErrorCodeProtocolError, message, 400, nil)
}

// NewRequestTimeoutError reports a one-shot request that was never answered.
// Not retried automatically; the user re-issues.
func NewRequestTimeoutError(message string) *AppError {
	return NewAppError(ErrorCodeRequestTimeout, message, 504, nil)
}

// NewSyncDisabledError reports an action that needs a session hub when none
// is configured.
func NewSyncDisabledError() *AppError {
	return NewAppError(ErrorCodeSyncDisabled, "device sync is not configured", 409, nil)
}

// NewTargetUnavailableError reports a command or transfer aimed at a device
// that is no longer present.
func NewTargetUnavailableError(deviceID string) *AppError {
	return NewAppError(ErrorCodeTargetUnavailable, "target device not available: "+deviceID, 409, map[string]any{
		"device_id": deviceID,
	})
}

// NewNotConnectedError reports an outbound send attempted while the hub
// connection is down.
func NewNotConnectedError() *AppError {
	return NewAppError(ErrorCodeNotConnected, "not connected to session hub", 503, nil)
}

// EnsureAppError converts an arbitrary error into an AppError.
func EnsureAppError(err error) *AppError {
	if err == nil {
		return NewInternalError("Unknown error")
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return NewInternalError("Internal server error")
}
