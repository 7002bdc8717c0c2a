package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/zhouzirui/z-relay/backend/pkg/utils"
)

func bearerToken(header string) (string, string) {
	if header == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// requireOperator admits requests bearing the operator password. With no
// password configured every request is rejected.
func requireOperator(password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if password == "" {
				utils.RespondError(w, http.StatusUnauthorized, "operator access is disabled")
				return
			}
			token, msg := bearerToken(r.Header.Get("Authorization"))
			if msg != "" {
				utils.RespondError(w, http.StatusUnauthorized, msg)
				return
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(password)) != 1 {
				utils.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
