package handlers

import "github.com/gin-gonic/gin"

type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func RespondOK(c *gin.Context, status int, data any) {
	c.JSON(status, apiResponse{Success: true, Data: data})
}

func RespondError(c *gin.Context, status int, message string) {
	c.JSON(status, apiResponse{Success: false, Error: message})
}
