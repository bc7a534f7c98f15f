// Package middleware содержит HTTP middleware сервиса лояльности.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const businessIDKey contextKey = "businessID"

const (
	authCookieName = "auth_token"
	authCookieTTL  = 365 * 24 * time.Hour
)

// AuthMiddleware выполняет проверку аутентификации бизнеса по подписанному cookie.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
	}
}

// Middleware проверяет cookie авторизации и добавляет идентификатор бизнеса в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookieName)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		businessID, ok := a.parseCookie(cookie.Value)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), businessIDKey, businessID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetAuthCookie устанавливает cookie авторизации для указанного идентификатора бизнеса.
func (a *AuthMiddleware) SetAuthCookie(w http.ResponseWriter, businessID uuid.UUID) {
	value := a.sign(businessID.String())

	cookie := &http.Cookie{
		Name:     authCookieName,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(authCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	http.SetCookie(w, cookie)
}

func (a *AuthMiddleware) sign(id string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(id))
	signature := mac.Sum(nil)
	return id + "." + hex.EncodeToString(signature)
}

func (a *AuthMiddleware) parseCookie(cookieValue string) (uuid.UUID, bool) {
	parts := strings.Split(cookieValue, ".")
	if len(parts) != 2 {
		return uuid.Nil, false
	}

	idStr := parts[0]
	signature := parts[1]

	expectedParts := strings.Split(a.sign(idStr), ".")
	if len(expectedParts) != 2 {
		return uuid.Nil, false
	}

	if !hmac.Equal([]byte(signature), []byte(expectedParts[1])) {
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, false
	}

	return id, true
}

// GetBusinessIDFromContext извлекает идентификатор бизнеса из контекста запроса.
func GetBusinessIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(businessIDKey).(uuid.UUID)
	return id, ok
}
