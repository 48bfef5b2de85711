package server

// Grounded on cmd/xchainserver/server/middleware.go: a request logger and a
// JSON content-type setter, both plain http.Handler wrappers composed via
// gorilla/mux's Router.Use.

import (
	"net/http"

	log "github.com/sirupsen/logrus"
)

// RequestLogger writes basic request info using structured logging.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Info("gatewayd: incoming request")
		next.ServeHTTP(w, r)
	})
}

// JSONHeaders sets Content-Type application/json for all responses.
func JSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
