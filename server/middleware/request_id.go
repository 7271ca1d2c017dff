package middleware

import (
	"context"
)

// requestIDKey ключ request ID в контексте запроса
type requestIDKey struct{}

// SetRequestID кладет request ID в контекст.
// Дальше по цепочке ID доступен любому коду, работающему с context.Context
func SetRequestID(ctx context.Context, reqID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, reqID)
}

// GetRequestID извлекает request ID из контекста
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	reqID, ok := ctx.Value(requestIDKey{}).(string)
	if !ok {
		return ""
	}
	return reqID
}
