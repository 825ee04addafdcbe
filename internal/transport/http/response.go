package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// body is the standard API response envelope.
type body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, body{Success: true, Data: data})
}

func respondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, body{Success: true, Data: data})
}

func respondBadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, body{Success: false, Error: err})
}

func respondUnauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, body{Success: false, Error: err})
}

func respondForbidden(c *gin.Context, err string) {
	c.JSON(http.StatusForbidden, body{Success: false, Error: err})
}

func respondNotFound(c *gin.Context, err string) {
	c.JSON(http.StatusNotFound, body{Success: false, Error: err})
}

func respondConflict(c *gin.Context, err string) {
	c.JSON(http.StatusConflict, body{Success: false, Error: err})
}

func respondBadGateway(c *gin.Context, err string) {
	c.JSON(http.StatusBadGateway, body{Success: false, Error: err})
}

func respondInternal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, body{Success: false, Error: err})
}
