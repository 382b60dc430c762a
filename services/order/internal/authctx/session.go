// Package authctx хранит идентификатор сессии в context.Context.
// Ключ неэкспортируемого типа, снаружи значение достаётся только через функции пакета.
package authctx

import (
	"context"
)

type ctxKeySessionID struct{}

var sessionIDKey = ctxKeySessionID{}

// WithSessionID сохраняет session_id в контексте запроса
func WithSessionID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sid)
}

// SessionIDFromContext возвращает session_id из контекста, если он был установлен
func SessionIDFromContext(ctx context.Context) (string, bool) {
	sid, ok := ctx.Value(sessionIDKey).(string)
	return sid, ok
}
