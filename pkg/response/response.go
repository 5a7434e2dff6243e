package response

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-idv-api/internal/models"
	appErrors "github.com/noah-isme/campus-idv-api/pkg/errors"
	"github.com/noah-isme/campus-idv-api/pkg/ratelimit"
)

// Envelope represents the common response contract.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	envelope := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	if appErr.Code == appErrors.ErrRateLimited.Code {
		if res, ok := appErr.Details.(ratelimit.Result); ok {
			RateLimitHeaders(c, res)
			retryAfter := time.Until(res.Reset)
			if retryAfter > 0 {
				c.Header("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())+1))
			}
		}
	}
	c.JSON(appErr.Status, Envelope{Error: appErr})
}

// RateLimitHeaders attaches the standard limiter headers to the response.
func RateLimitHeaders(c *gin.Context, res ratelimit.Result) {
	c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", res.Limit))
	c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", res.Remaining))
	c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", res.Reset.Unix()))
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
