package middleware

import (
	"net/http"
	"runtime/debug"

	"settlement/pkg/utils"
)

// Recovery - middleware для восстановления после паники в handlers
//
// Логирует panic со stack trace и отвечает 500, сервер продолжает работу.
func Recovery(next http.Handler) http.Handler {
	log := utils.L().WithComponent("http")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Error("panic in handler",
					utils.Any("panic", err),
					utils.String("path", r.URL.Path),
					utils.String("stack", string(debug.Stack())),
				)
				writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
