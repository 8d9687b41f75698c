package common

import "context"

type ctxKey string

const (
	accountIDKey ctxKey = "auth/account-id"
	languageKey  ctxKey = "request/language"
)

// WithAccountID stores the authenticated account identifier on the provided context.
func WithAccountID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, accountIDKey, id)
}

// AccountID extracts the authenticated account identifier from the context if present.
func AccountID(ctx context.Context) (string, bool) {
	v := ctx.Value(accountIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// WithLanguage stores the shopper's preferred language.
func WithLanguage(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, languageKey, lang)
}

// Language returns the preferred language or def.
func Language(ctx context.Context, def string) string {
	if v, ok := ctx.Value(languageKey).(string); ok && v != "" {
		return v
	}
	return def
}
