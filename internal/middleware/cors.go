package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

var DefaultAllowedOrigins = []string{
	"http://localhost:8080",
	"http://localhost:5173",
}

// Cors lets browser front-ends on the listed origins call the sync API.
// Requests from non-browser clients (the CLI) carry no Origin and pass untouched.
func Cors(allowedOrigins []string) func(next http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"Content-Length",
			"Accept-Encoding",
			TokenHeader,
		},
		MaxAge: 600,
	})
	return c.Handler
}
