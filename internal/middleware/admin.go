package middleware

import (
	"crypto/hmac"
	"net/http"
)

const adminTokenHeader = "X-Admin-Token"

// AdminMiddleware пропускает только запросы с корректным операторским токеном.
type AdminMiddleware struct {
	token []byte
}

// NewAdminMiddleware создаёт middleware проверки операторского токена.
// Пустой токен закрывает административные маршруты полностью.
func NewAdminMiddleware(token string) *AdminMiddleware {
	return &AdminMiddleware{token: []byte(token)}
}

// Middleware проверяет заголовок X-Admin-Token.
func (a *AdminMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.token) == 0 {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		provided := []byte(r.Header.Get(adminTokenHeader))
		if !hmac.Equal(provided, a.token) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
