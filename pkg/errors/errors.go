package errors

import "fmt"

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is 按错误码匹配
func Is(err error, code string) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Code == code
}

var (
	ErrConfigLoad        = "CONFIG_LOAD_ERROR"
	ErrDatabaseConnect   = "DATABASE_CONNECT_ERROR"
	ErrRedisConnect      = "REDIS_CONNECT_ERROR"
	ErrRPConnect         = "RPC_CONNECT_ERROR"
	ErrBlockFetch        = "BLOCK_FETCH_ERROR"
	ErrEventParse        = "EVENT_PARSE_ERROR"
	ErrNotFound          = "NOT_FOUND"
	ErrInvalidTransition = "INVALID_TRANSITION"
	ErrConflict          = "STATUS_CONFLICT"
	ErrMalformedRecord   = "MALFORMED_RECORD"
	ErrPayloadCodec      = "PAYLOAD_CODEC_ERROR"
	ErrPrecision         = "PRECISION_ERROR"
	ErrStatusUpdate      = "STATUS_UPDATE_ERROR"
)
