package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vidsift/internal/apperrors"
)

// DataResponse is the envelope for successful responses.
type DataResponse[T any] struct {
	Data T `json:"data"`
}

// ErrorResponse is the envelope for failures.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// OK sends a 200 with the data envelope.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse[any]{Data: data})
}

// Accepted sends a 202 with the data envelope.
func Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, DataResponse[any]{Data: data})
}

// Error maps a typed error onto its HTTP status and kind code.
func Error(c *gin.Context, err error) {
	c.JSON(apperrors.GetHTTPStatus(err), ErrorResponse{
		Error: err.Error(),
		Kind:  apperrors.Kind(err),
	})
}
