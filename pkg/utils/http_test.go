package utils

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestContext(headers map[string]string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "203.0.113.7:51234"
	for k, v := range headers {
		c.Request.Header.Set(k, v)
	}
	return c
}

func TestGetClientIPPrefersForwardedFor(t *testing.T) {
	c := newTestContext(map[string]string{
		"X-Forwarded-For": "198.51.100.1, 10.0.0.2",
		"X-Real-IP":       "198.51.100.9",
	})
	assert.Equal(t, "198.51.100.1", GetClientIP(c))
}

func TestGetClientIPFallsBackToRealIP(t *testing.T) {
	c := newTestContext(map[string]string{"X-Real-IP": "198.51.100.9"})
	assert.Equal(t, "198.51.100.9", GetClientIP(c))
}

func TestGetClientIPUsesRemoteAddr(t *testing.T) {
	c := newTestContext(nil)
	assert.Equal(t, "203.0.113.7", GetClientIP(c))
}

func TestHandleError(t *testing.T) {
	// Logs and reports; must be safe with and without an error, and
	// without an initialized Sentry client.
	HandleError(nil, "noop")
	HandleError(errors.New("boom"), "test context")
}

func TestCaptureSentryPanicNilRecoveredIsNoop(t *testing.T) {
	CaptureSentryPanic("test", nil)
	CaptureSentryPanic("test", "panic value")
}
