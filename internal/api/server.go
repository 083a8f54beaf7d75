package api

import (
	"net/http"
	"time"

	"github.com/sero-sim/scene-engine/internal/publish"
)

// NewServer wraps handler in an http.Server. Shutdown disconnects the
// context streams first; they never go idle on their own.
func NewServer(addr string, handler http.Handler, streams *publish.Broadcaster) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if streams != nil {
		srv.RegisterOnShutdown(func() { _ = streams.Close() })
	}
	return srv
}
