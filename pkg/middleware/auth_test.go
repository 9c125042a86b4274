package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// fakeToken implements Token
type fakeToken struct {
	data map[string]interface{}
}

func (t *fakeToken) Claims(v interface{}) error {
	if mm, ok := v.(*map[string]interface{}); ok {
		*mm = t.data
		return nil
	}
	return fmt.Errorf("unsupported claims type")
}

// fakeVerifier implements Verifier
type fakeVerifier struct{}

func (f *fakeVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	if raw == "goodtoken" {
		return &fakeToken{data: map[string]interface{}{"sub": "user1", "preferred_username": "jane"}}, nil
	}
	return nil, fmt.Errorf("invalid token")
}

func serve(t *testing.T, header string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	g := gin.New()
	var editor string
	g.GET("/", AuthMiddleware(&fakeVerifier{}), func(c *gin.Context) {
		editor = Editor(c)
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	return rw, editor
}

func TestAuthMiddleware(t *testing.T) {
	rw, _ := serve(t, "")
	require.Equal(t, http.StatusUnauthorized, rw.Code)

	rw, _ = serve(t, "BadHeader")
	require.Equal(t, http.StatusUnauthorized, rw.Code)

	rw, _ = serve(t, "Bearer badtoken")
	require.Equal(t, http.StatusUnauthorized, rw.Code)

	rw, editor := serve(t, "Bearer goodtoken")
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, "jane", editor)
}

func TestEditorFromClaims(t *testing.T) {
	require.Equal(t, "jane", EditorFromClaims(map[string]interface{}{"preferred_username": "jane", "sub": "s"}))
	require.Equal(t, "j@example.com", EditorFromClaims(map[string]interface{}{"email": "j@example.com", "sub": "s"}))
	require.Equal(t, "s", EditorFromClaims(map[string]interface{}{"preferred_username": "", "sub": "s"}))
	require.Equal(t, "", EditorFromClaims(map[string]interface{}{}))
}
