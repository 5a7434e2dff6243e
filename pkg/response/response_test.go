package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/campus-idv-api/pkg/errors"
	"github.com/noah-isme/campus-idv-api/pkg/ratelimit"
)

func TestErrorSetsRateLimitHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	reset := time.Now().Add(42 * time.Second)
	err := appErrors.WithDetails(appErrors.ErrRateLimited, "too many submissions", ratelimit.Result{
		Limit:     3,
		Remaining: 0,
		Reset:     reset,
	})
	Error(c, err)

	require.Equal(t, http.StatusTooManyRequests, recorder.Code)
	require.Equal(t, "3", recorder.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", recorder.Header().Get("X-RateLimit-Remaining"))
	require.Equal(t, strconv.FormatInt(reset.Unix(), 10), recorder.Header().Get("X-RateLimit-Reset"))

	retryAfter, convErr := strconv.Atoi(recorder.Header().Get("Retry-After"))
	require.NoError(t, convErr)
	require.Greater(t, retryAfter, 0)
	require.LessOrEqual(t, retryAfter, 43)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	require.Equal(t, appErrors.ErrRateLimited.Code, envelope.Error.Code)
}

func TestErrorWrapsUnknownErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	Error(c, appErrors.New(appErrors.ErrNotFound.Code, http.StatusNotFound, "student not found"))

	require.Equal(t, http.StatusNotFound, recorder.Code)
	require.Equal(t, "no-store", recorder.Header().Get("Cache-Control"))
}

func TestJSONIncludesMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	JSON(c, http.StatusOK, map[string]string{"status": "ok"}, nil, map[string]interface{}{"request_id": "req-1"})

	require.Equal(t, http.StatusOK, recorder.Code)
	var envelope Envelope
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	require.Equal(t, "req-1", envelope.Meta["request_id"])
}
