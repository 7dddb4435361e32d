package middleware

import (
	"context"
	"crypto/sha256"
	"net/http"
	"sync"

	"settlement/pkg/crypto"
	"settlement/pkg/utils"
)

// InternalTokenHeader - заголовок токена доверенных сервисов
const InternalTokenHeader = "X-Internal-Token"

type contextKey int

const internalKey contextKey = iota

// IsInternal возвращает true если запрос пришёл от доверенного сервиса
func IsInternal(ctx context.Context) bool {
	v, _ := ctx.Value(internalKey).(bool)
	return v
}

// WithInternal помечает контекст как внутренний (для тестов handlers)
func WithInternal(ctx context.Context) context.Context {
	return context.WithValue(ctx, internalKey, true)
}

// InternalAuth различает клиентские и внутренние запросы
//
// Внутренний запрос несёт X-Internal-Token, который сверяется с bcrypt
// хешем INTERNAL_TOKEN_HASH. Без заголовка запрос считается клиентским
// и проходит полный набор проверок settlement. Неверный токен - 401.
//
// bcrypt медленный, поэтому успешная проверка запоминается по sha256 токена.
type InternalAuth struct {
	hash     string
	mu       sync.RWMutex
	verified map[[sha256.Size]byte]struct{}
	log      *utils.Logger
}

// NewInternalAuth создает проверку. Пустой hash - внутренние вызовы отключены.
func NewInternalAuth(hash string) *InternalAuth {
	return &InternalAuth{
		hash:     hash,
		verified: make(map[[sha256.Size]byte]struct{}),
		log:      utils.L().WithComponent("auth"),
	}
}

// Middleware помечает контекст запроса с валидным токеном
func (a *InternalAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(InternalTokenHeader)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		if !a.verify(token) {
			a.log.Warn("invalid internal token", utils.String("remote", r.RemoteAddr), utils.String("path", r.URL.Path))
			writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid internal token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithInternal(r.Context())))
	})
}

// RequireInternal пропускает только внутренние запросы
func RequireInternal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsInternal(r.Context()) {
			writeError(w, http.StatusForbidden, "forbidden", "Internal endpoint")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *InternalAuth) verify(token string) bool {
	if a.hash == "" {
		return false
	}

	key := sha256.Sum256([]byte(token))
	a.mu.RLock()
	_, ok := a.verified[key]
	a.mu.RUnlock()
	if ok {
		return true
	}

	if err := crypto.VerifyToken(token, a.hash); err != nil {
		return false
	}

	a.mu.Lock()
	a.verified[key] = struct{}{}
	a.mu.Unlock()
	return true
}
