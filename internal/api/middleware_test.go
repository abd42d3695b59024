package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func apiKeyRouter(key string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(APIKeyMiddleware(key))
	r.GET("/protected", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		provided   string
		want       int
	}{
		{"valid key", "secret", "secret", http.StatusOK},
		{"missing key", "secret", "", http.StatusUnauthorized},
		{"wrong key", "secret", "nope", http.StatusForbidden},
		{"auth disabled", "", "", http.StatusOK},
		{"auth disabled ignores header", "", "anything", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.provided != "" {
				req.Header.Set("X-API-Key", tt.provided)
			}

			w := httptest.NewRecorder()
			apiKeyRouter(tt.configured).ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
