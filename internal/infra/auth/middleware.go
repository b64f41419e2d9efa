package auth

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// TokenValidator — интерфейс проверки токена, реализуется BaseValidator.
type TokenValidator interface {
	VerifyToken(tokenStr string) (*Claims, error)
}

type ctxKey string

const (
	ctxKeyClientID ctxKey = "client_id"
	ctxKeyScopes   ctxKey = "scopes"
)

// ClientIDFromContext возвращает ID клиента, положенный middleware.
func ClientIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKeyClientID).(string); ok {
		return id
	}
	return ""
}

// HasScope проверяет наличие разрешения в контексте запроса.
func HasScope(ctx context.Context, scope string) bool {
	scopes, ok := ctx.Value(ctxKeyScopes).(map[string]bool)
	if !ok {
		return false
	}
	return scopes[scope] || scopes["admin"]
}

// NewMiddleware пропускает запрос по RS256-токену либо по X-API-Key,
// сверяемому с bcrypt-хэшами из конфигурации.
func NewMiddleware(v TokenValidator, apiKeyHashes map[string]string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key := r.Header.Get("X-API-Key"); key != "" {
				for clientID, hash := range apiKeyHashes {
					if VerifyAPIKey(key, hash) {
						ctx := context.WithValue(r.Context(), ctxKeyClientID, clientID)
						next.ServeHTTP(w, r.WithContext(ctx))
						return
					}
				}
				logger.Warn("unknown api key presented")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := v.VerifyToken(authHeader)
			if err != nil {
				logger.Warn("auth failure", zap.Error(err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			// Прокидываем данные в контекст
			ctx := context.WithValue(r.Context(), ctxKeyClientID, claims.ClientID)
			ctx = context.WithValue(ctx, ctxKeyScopes, claims.Scopes)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
