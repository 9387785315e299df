package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	ErrCodeSuccess       = 4001 // Success
	ErrCodeParamInvalid  = 4003 // Request body invalid
	ErrCodeOrderNotFound = 4004 // Order does not exist
	ErrCodeStatusInvalid = 4005 // Unknown order status
	ErrCodeInternal      = 5000 // Internal error
)

// message
var msg = map[int]string{
	ErrCodeSuccess:       "success",
	ErrCodeParamInvalid:  "request is invalid",
	ErrCodeOrderNotFound: "order not found",
	ErrCodeStatusInvalid: "invalid order status",
	ErrCodeInternal:      "internal server error",
}

func Message(code int) string {
	return msg[code]
}

// Error writes a JSON error body with an application error code.
func Error(c *gin.Context, httpStatus, code int, details string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": Message(code),
		"details": details,
	})
}

// OK writes a 200 with the payload.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created writes a 201 with the payload.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}
