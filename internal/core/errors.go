package core

// Error codes carried across the connection boundary.
const (
	ErrCodeUnauthorized    = "unauthorized"
	ErrCodeBadRequest      = "bad_request"
	ErrCodeChannelNotFound = "channel_not_found"
	ErrCodePersistence     = "persistence_error"
	ErrCodeDuplicate       = "duplicate"
	ErrCodeInternal        = "internal_error"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
