package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestGenerateTokenRoundTrip(t *testing.T) {
	secret := "test-secret"
	signed, expiresAt, err := GenerateToken("user-123", "merchant", secret, time.Hour)
	assert.NoError(t, err)
	assert.NotEmpty(t, signed)
	assert.True(t, expiresAt.After(time.Now()))

	token, err := jwt.Parse(signed, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	assert.NoError(t, err)
	assert.True(t, token.Valid)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user", token)

	userID, err := UserIDFromContext(c)
	assert.NoError(t, err)
	assert.Equal(t, "user-123", userID)
	assert.Equal(t, "merchant", RoleFromContext(c))
}

func TestGenerateTokenValidation(t *testing.T) {
	if _, _, err := GenerateToken("", "merchant", "secret", time.Hour); err == nil {
		t.Fatal("expected error for empty user id")
	}
	if _, _, err := GenerateToken("user-1", "merchant", "", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, _, err := GenerateToken("user-1", "merchant", "secret", 0); err == nil {
		t.Fatal("expected error for non-positive expiry")
	}
}

func TestUserIDFromContextMissingToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	_, err := UserIDFromContext(c)
	assert.Error(t, err)
}
