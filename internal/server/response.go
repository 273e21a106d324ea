package server

import (
	"github.com/gin-gonic/gin"
)

type response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type countResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

func respondJSON(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, response{
		Success: code >= 200 && code < 300,
		Message: message,
		Data:    data,
	})
}

func respondError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, response{Success: false, Message: message})
}
