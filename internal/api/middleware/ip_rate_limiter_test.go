package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newIPLimiterRouter(l *IPRateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(l.Limit())
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func TestIPRateLimiter_AllowsWithinBurst(t *testing.T) {
	router := newIPLimiterRouter(NewIPRateLimiter(5))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIPRateLimiter_RejectsOnceBurstExhausted(t *testing.T) {
	router := newIPLimiterRouter(NewIPRateLimiter(1))

	for i := 0; i < 1; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "203.0.113.5:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "203.0.113.5:1234"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestIPRateLimiter_TracksCallersIndependently(t *testing.T) {
	router := newIPLimiterRouter(NewIPRateLimiter(1))

	first := httptest.NewRequest(http.MethodGet, "/ping", nil)
	first.RemoteAddr = "203.0.113.10:1234"
	w1 := httptest.NewRecorder()
	router.ServeHTTP(w1, first)
	assert.Equal(t, http.StatusOK, w1.Code)

	second := httptest.NewRequest(http.MethodGet, "/ping", nil)
	second.RemoteAddr = "203.0.113.11:1234"
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, second)
	assert.Equal(t, http.StatusOK, w2.Code)
}
