// Package auth authenticates shoppers by HS256 bearer tokens. The token
// subject is the account id.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/storefront-core/internal/common"
)

// CodeUnauthorized is returned for missing or invalid credentials.
const CodeUnauthorized = "unauthorized"

// Verifier signs and verifies access tokens.
type Verifier struct {
	Secret    []byte
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Now       func() time.Time
}

func (v *Verifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

func unauthorized(message string, err error) error {
	return common.NewAppError(CodeUnauthorized, message, http.StatusUnauthorized, err)
}

// ParseAccessToken verifies signature, algorithm and registered claims and
// returns the account id carried as subject.
func (v *Verifier) ParseAccessToken(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", unauthorized("missing token", nil)
	}
	alg, err := tokenAlgorithm(trimmed)
	if err != nil {
		return "", unauthorized("invalid token", err)
	}
	if alg != jwa.HS256 {
		return "", unauthorized("invalid token", fmt.Errorf("auth: unexpected token algorithm %s", alg))
	}

	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(jwa.HS256, v.Secret), jwt.WithValidate(false))
	if err != nil {
		return "", unauthorized("invalid token", err)
	}
	opts := []jwt.ValidateOption{jwt.WithClock(jwt.ClockFunc(v.now))}
	if v.ClockSkew > 0 {
		opts = append(opts, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}
	if err := jwt.Validate(parsed, opts...); err != nil {
		return "", unauthorized("invalid token", err)
	}
	if parsed.Subject() == "" {
		return "", unauthorized("invalid token", errors.New("auth: token without subject"))
	}
	return parsed.Subject(), nil
}

// IssueAccessToken signs a token for accountID valid for ttl.
func (v *Verifier) IssueAccessToken(accountID string, ttl time.Duration) (string, error) {
	now := v.now()
	b := jwt.NewBuilder().
		Subject(accountID).
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(ttl))
	if v.Issuer != "" {
		b = b.Issuer(v.Issuer)
	}
	if v.Audience != "" {
		b = b.Audience([]string{v.Audience})
	}
	tok, err := b.Build()
	if err != nil {
		return "", fmt.Errorf("auth: build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, v.Secret))
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return string(signed), nil
}

// tokenAlgorithm reads the algorithm from the protected headers, rejecting
// unsigned and mixed-algorithm tokens.
func tokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	msg, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	sigs := msg.Signatures()
	if len(sigs) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var alg jwa.SignatureAlgorithm
	for _, sig := range sigs {
		headers := sig.ProtectedHeaders()
		if headers == nil || headers.Algorithm() == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		if headers.Algorithm() == jwa.NoSignature {
			return "", errors.New("auth: token uses none algorithm")
		}
		if alg != "" && alg != headers.Algorithm() {
			return "", errors.New("auth: mixed token algorithms detected")
		}
		alg = headers.Algorithm()
	}
	return alg, nil
}
