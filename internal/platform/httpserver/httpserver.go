package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with timeouts suited to short JSON requests. LLM
// flow routes stay under writeTimeout via the request timeout middleware.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
