package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Success writes {"status":"success", ...data} with status 200.
func Success(c *gin.Context, data gin.H) {
	body := gin.H{"status": "success"}
	for k, v := range data {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// Error writes {"status":"error","error":msg} with the given status code.
func Error(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{
		"status": "error",
		"error":  msg,
	})
}

// Fault reports an unexpected failure without leaking its details.
func Fault(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "internal server error")
}
