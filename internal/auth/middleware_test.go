package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-core/internal/common"
)

func accountEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := common.AccountID(r.Context())
		_, _ = w.Write([]byte(id))
	})
}

func TestAuthenticateSetsAccountID(t *testing.T) {
	v := newVerifier(time.Now())
	token, err := v.IssueAccessToken("acc-1", time.Minute)
	require.NoError(t, err)
	h := Middleware{Verifier: v, Logger: zerolog.Nop()}.Authenticate(accountEcho())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "acc-1", rec.Body.String())
}

func TestAuthenticateContinuesAnonymously(t *testing.T) {
	h := Middleware{Verifier: newVerifier(time.Now()), Logger: zerolog.Nop()}.Authenticate(accountEcho())

	for _, header := range []string{"", "Bearer garbage", "Basic abc"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, rec.Body.String())
	}
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	h := Middleware{Verifier: newVerifier(time.Now())}.RequireAuth(accountEcho())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
