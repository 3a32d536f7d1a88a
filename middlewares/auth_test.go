package middlewares_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"harvest/middlewares"
	"harvest/utils"
)

const secret = "middleware-secret"

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(middlewares.AuthMiddleware(secret))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":   c.GetString(middlewares.ContextUserID),
			"user_type": c.GetString(middlewares.ContextUserType),
		})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	token, err := utils.GenerateToken(secret, "farmer-7", "farmer", time.Hour)
	require.NoError(t, err)

	foreign, err := utils.GenerateToken("someone-else", "farmer-7", "farmer", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantBody string
	}{
		{
			name:     "valid token",
			header:   "Bearer " + token,
			wantCode: http.StatusOK,
			wantBody: `{"user_id":"farmer-7","user_type":"farmer"}`,
		},
		{
			name:     "lower case scheme",
			header:   "bearer " + token,
			wantCode: http.StatusOK,
			wantBody: `{"user_id":"farmer-7","user_type":"farmer"}`,
		},
		{
			name:     "no header",
			wantCode: http.StatusUnauthorized,
			wantBody: `{"status":"error","message":"Unauthorized"}`,
		},
		{
			name:     "basic auth",
			header:   "Basic dXNlcjpwYXNz",
			wantCode: http.StatusUnauthorized,
			wantBody: `{"status":"error","message":"Unauthorized"}`,
		},
		{
			name:     "empty bearer",
			header:   "Bearer ",
			wantCode: http.StatusUnauthorized,
			wantBody: `{"status":"error","message":"Unauthorized"}`,
		},
		{
			name:     "foreign signature",
			header:   "Bearer " + foreign,
			wantCode: http.StatusUnauthorized,
			wantBody: `{"status":"error","message":"Invalid token"}`,
		},
	}

	r := newAuthRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}
