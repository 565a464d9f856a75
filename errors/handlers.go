package errors

import (
	"go.uber.org/zap"
)

// LogError logs an error with its context
func LogError(logger *zap.Logger, err error, requestID string) {
	var chatErr *ChatError
	if As(err, &chatErr) {
		logger.Error("request error",
			zap.String("error_type", string(chatErr.Type)),
			zap.String("message", chatErr.Message),
			zap.Int("code", chatErr.Code),
			zap.String("request_id", requestID),
			zap.Any("details", chatErr.Details),
			zap.NamedError("cause", chatErr.Unwrap()),
		)
		return
	}
	logger.Error("unexpected error",
		zap.Error(err),
		zap.String("request_id", requestID),
	)
}
