package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// HS256 requires the key to be at least 32 bytes.
var secret = []byte("0123456789abcdef0123456789abcdef")

func TestTokenRoundTrip(t *testing.T) {
	token, err := IssueToken(secret, "user-123", time.Hour)
	require.NoError(t, err)

	userID, err := VerifyToken(secret, token)
	require.NoError(t, err)
	require.Equal(t, "user-123", userID)
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := IssueToken(secret, "user-123", -time.Minute)
	require.NoError(t, err)

	_, err = VerifyToken(secret, token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestWrongSecretRejected(t *testing.T) {
	token, err := IssueToken(secret, "user-123", time.Hour)
	require.NoError(t, err)

	_, err = VerifyToken([]byte("ffffffffffffffffffffffffffffffff"), token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestShortSecretRejectedAtIssue(t *testing.T) {
	_, err := IssueToken([]byte("too-short"), "user-123", time.Hour)
	require.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Middleware(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id")})
	})

	token, err := IssueToken(secret, "user-123", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "user-123")

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
