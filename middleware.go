package main

import (
	"fmt"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
)

// recoverPanic turns a panicking handler into a 500 response.
func (app *App) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				app.errorResponse(w, r, fmt.Errorf("panic: %v", err))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// instrument records status and latency of every routed request. Requests
// are labelled with the route template so IDs do not explode cardinality.
func (app *App) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}

		m := httpsnoop.CaptureMetrics(next, w, r)

		app.metrics.ObserveHTTP(r.Method, path, m.Code, m.Duration)
		app.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "route", path,
			"status", m.Code, "bytes", m.Written, "duration", m.Duration)
	})
}
