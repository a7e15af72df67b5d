package app

import (
	"context"
	"net"
	"net/http"
	"time"
)

// NewServer builds the API's http.Server. Every request context derives from
// a base context that Shutdown cancels, so parked monitor requests return
// their empty result instead of holding Shutdown until MONITOR_TIMEOUT.
func NewServer(addr string, h http.Handler, monitorTimeout time.Duration) *http.Server {
	base, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		BaseContext:       func(net.Listener) context.Context { return base },
		ReadHeaderTimeout: 10 * time.Second,
		// Monitor requests hold the response open up to MONITOR_TIMEOUT.
		WriteTimeout: monitorTimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}
	srv.RegisterOnShutdown(cancel)
	return srv
}
