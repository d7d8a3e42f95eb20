package common

import "context"

type ctxKey string

const phoneKey ctxKey = "auth/phone"

// WithPhone stores the authenticated phone number on the context.
func WithPhone(ctx context.Context, phone string) context.Context {
	return context.WithValue(ctx, phoneKey, phone)
}

// Phone extracts the authenticated phone number from the context if present.
func Phone(ctx context.Context) (string, bool) {
	v := ctx.Value(phoneKey)
	if v == nil {
		return "", false
	}
	phone, ok := v.(string)
	return phone, ok && phone != ""
}
