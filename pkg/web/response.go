package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/lk2023060901/xdooria-gacha/pkg/web/middleware"
	weberrors "github.com/lk2023060901/xdooria-gacha/pkg/web/errors"
)

// Response 统一响应结构
type Response struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
	RequestID string `json:"request_id,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:      weberrors.CodeOK,
		Message:   "ok",
		Data:      data,
		RequestID: middleware.GetRequestID(c),
	})
}

// Error 按业务错误码返回错误响应，HTTP 状态码由错误码推导
func Error(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(weberrors.CodeToStatus(code), Response{
		Code:      code,
		Message:   message,
		RequestID: middleware.GetRequestID(c),
	})
}

// BindJSON 绑定并校验 JSON 请求体，失败时直接写回 400
func BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			Error(c, weberrors.CodeInvalidParams, verrs.Error())
		} else {
			Error(c, weberrors.CodeInvalidParams, "invalid request body: "+err.Error())
		}
		return false
	}
	return true
}
