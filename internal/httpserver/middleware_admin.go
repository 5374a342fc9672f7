package httpserver

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	apierrors "github.com/FolioMarket/server/internal/errors"
)

// adminAPIAuth is middleware that protects operational endpoints with an API key.
// If no API key is configured, the endpoint is accessible without authentication.
// If an API key is configured, requests must include an "Authorization: Bearer {key}" header.
func adminAPIAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			expectedHeader := "Bearer " + apiKey

			if subtle.ConstantTimeCompare([]byte(authHeader), []byte(expectedHeader)) != 1 {
				resp := apierrors.NewErrorResponse(apierrors.ErrCodeInvalidField, "Invalid or missing admin API key", nil)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(resp)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
