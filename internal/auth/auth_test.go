package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tecsrilankaworldwide/grade5-scholarship-exam/internal/auth"
)

func TestIssueAndParse(t *testing.T) {
	s := auth.NewService("test-secret", time.Hour)

	tok, err := s.IssueJWT("stu-1", "student")
	require.NoError(t, err)

	c, err := s.Parse(tok)
	require.NoError(t, err)
	require.Equal(t, "stu-1", c.Sub)
	require.Equal(t, "student", c.Role)
}

func TestParseRejectsWrongKey(t *testing.T) {
	tok, err := auth.NewService("secret-a", time.Hour).IssueJWT("stu-1", "student")
	require.NoError(t, err)

	_, err = auth.NewService("secret-b", time.Hour).Parse(tok)
	require.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	s := auth.NewService("test-secret", time.Nanosecond)
	tok, err := s.IssueJWT("stu-1", "student")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = s.Parse(tok)
	require.Error(t, err)
}

func TestJWTMiddleware(t *testing.T) {
	s := auth.NewService("test-secret", time.Hour)

	var gotSub, gotRole string
	h := auth.JWTMiddleware(s)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSub = auth.SubjectFromContext(r.Context())
		gotRole = auth.RoleFromContext(r.Context())
	}))

	// No header.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Garbage token.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid token reaches the handler with identity attached.
	tok, err := s.IssueJWT("teacher-1", "teacher")
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "teacher-1", gotSub)
	require.Equal(t, "teacher", gotRole)
}
