package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-core/internal/common"
)

var secret = []byte("test-secret-that-is-long-enough")

func fixedClock(ts time.Time) func() time.Time { return func() time.Time { return ts } }

func newVerifier(now time.Time) *Verifier {
	return &Verifier{Secret: secret, Issuer: "storefront", Audience: "shop", ClockSkew: time.Second, Now: fixedClock(now)}
}

func requireUnauthorized(t *testing.T, err error) {
	t.Helper()
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, CodeUnauthorized, appErr.Code)
	require.Equal(t, http.StatusUnauthorized, appErr.HTTPStatus)
}

func TestIssueThenParseAccessToken(t *testing.T) {
	now := time.Now()
	v := newVerifier(now)

	token, err := v.IssueAccessToken("acc-1", time.Minute)
	require.NoError(t, err)

	accountID, err := v.ParseAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "acc-1", accountID)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	now := time.Now()
	token, err := newVerifier(now.Add(-2*time.Hour)).IssueAccessToken("acc-1", time.Minute)
	require.NoError(t, err)

	_, err = newVerifier(now).ParseAccessToken(token)
	requireUnauthorized(t, err)
}

func TestParseAccessTokenRejectsIssuerMismatch(t *testing.T) {
	now := time.Now()
	other := newVerifier(now)
	other.Issuer = "someone-else"
	token, err := other.IssueAccessToken("acc-1", time.Minute)
	require.NoError(t, err)

	_, err = newVerifier(now).ParseAccessToken(token)
	requireUnauthorized(t, err)
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	now := time.Now()
	other := newVerifier(now)
	other.Secret = []byte("a-completely-different-secret!!")
	token, err := other.IssueAccessToken("acc-1", time.Minute)
	require.NoError(t, err)

	_, err = newVerifier(now).ParseAccessToken(token)
	requireUnauthorized(t, err)
}

func TestParseAccessTokenRejectsOtherAlgorithms(t *testing.T) {
	now := time.Now()
	tok, err := jwt.NewBuilder().Subject("acc-1").Issuer("storefront").Audience([]string{"shop"}).
		IssuedAt(now).Expiration(now.Add(time.Minute)).Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS512, secret))
	require.NoError(t, err)

	_, err = newVerifier(now).ParseAccessToken(string(signed))
	requireUnauthorized(t, err)
}

func TestParseAccessTokenRejectsGarbage(t *testing.T) {
	v := newVerifier(time.Now())

	_, err := v.ParseAccessToken("")
	requireUnauthorized(t, err)
	_, err = v.ParseAccessToken("not-a-token")
	requireUnauthorized(t, err)
}
