package shared

import (
	"github.com/cartflow/internal/http/response"
	"github.com/cartflow/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			if userID, ok := c.Get("user_id"); ok {
				return logger.SW("request_id", id, "user_id", userID)
			}
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// handlerError 接口错误：响应码、提示消息与原始错误
type handlerError struct {
	code int
	msg  string
	err  error
}

// RespondError 按消息键返回错误响应，并在有原始错误时记录日志。
func RespondError(c *gin.Context, code int, key string, err error) {
	RespondErrorWithMsg(c, code, Message(key), err)
}

// RespondErrorWithData 按消息键返回带附加数据的错误响应。
func RespondErrorWithData(c *gin.Context, code int, key string, data interface{}, err error) {
	if err != nil {
		logHandlerError(c, handlerError{code: code, msg: Message(key), err: err})
	}
	response.ErrorWithData(c, code, Message(key), data)
}

// RespondErrorWithMsg 返回自定义消息错误响应，并在有原始错误时记录日志。
func RespondErrorWithMsg(c *gin.Context, code int, msg string, err error) {
	if err != nil {
		logHandlerError(c, handlerError{code: code, msg: msg, err: err})
	}
	response.Error(c, code, msg)
}

// logHandlerError 5xx 记 error，其余记 warn
func logHandlerError(c *gin.Context, he handlerError) {
	log := RequestLog(c).With("code", he.code, "message", he.msg, "error", he.err)
	if he.code >= response.CodeInternal {
		log.Errorw("handler_error")
		return
	}
	log.Warnw("handler_error")
}
