package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. Write and idle timeouts leave headroom for the
// register path, which waits synchronously on the vision model and on block
// inclusion; the router's own request timeout fires first.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
