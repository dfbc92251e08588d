package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mcatalog/internal/pkg/jwt"
)

func TestJWTAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	secret := []byte("test-secret")
	token, err := jwt.GenerateToken("user-1", secret, time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name    string
		header  string
		aborted bool
	}{
		{name: "missing", header: "", aborted: true},
		{name: "wrong scheme", header: "Basic " + token, aborted: true},
		{name: "bad token", header: "Bearer nope", aborted: true},
		{name: "valid", header: "Bearer " + token, aborted: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/api/v1/imports", nil)
			if tc.header != "" {
				c.Request.Header.Set("Authorization", tc.header)
			}
			JWTAuth(secret)(c)
			require.Equal(t, tc.aborted, c.IsAborted())
			if !tc.aborted {
				require.Equal(t, "user-1", UserID(c))
			}
		})
	}
}
