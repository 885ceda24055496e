package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the envelope every action returns. Failures always carry success=false and an error string.
type Body struct {
	Success bool        `json:"success"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Msg     string      `json:"msg,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, data, "")
}

func SuccessWithMsg(c *gin.Context, data interface{}, msg string) {
	JSON(c, http.StatusOK, data, msg)
}

func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, Body{
		Success: false,
		Code:    status,
		Data:    gin.H{},
		Error:   msg,
	})
}

func JSON(c *gin.Context, status int, data interface{}, msg string) {
	if data == nil {
		data = gin.H{}
	}
	c.JSON(status, Body{
		Success: status < http.StatusBadRequest,
		Code:    status,
		Data:    data,
		Msg:     msg,
	})
}
