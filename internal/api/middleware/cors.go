package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS allows the listed browser origins to call the API with credentials.
// "*" allows any origin.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:       trimOrigins(allowedOrigins),
		AllowedMethods:       []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:       []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:       []string{SessionTokenHeader, "X-Request-ID"},
		AllowCredentials:     true,
		MaxAge:               300,
		OptionsSuccessStatus: http.StatusNoContent,
	})
}

// trimOrigins drops blanks and trailing slashes from configured origins.
func trimOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
