package api

import (
	"log"
	"net/http"
	"strings"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(h *Handlers) http.Handler {
	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, req)
			if h.cfg.Debug() || m.Code >= 500 {
				log.Printf("[http] %s %s %d %s", req.Method, req.URL.Path, m.Code, m.Duration)
			}
		})
	})

	r.Methods(http.MethodGet).Path("/healthz").HandlerFunc(h.HandleLive)
	r.Methods(http.MethodGet).Path("/readyz").HandlerFunc(h.HandleReady)
	r.Methods(http.MethodGet).Path("/metrics").Handler(promhttp.Handler())
	r.Methods(http.MethodGet).Path("/rooms/{roomId}/history").HandlerFunc(h.HandleHistory)
	if h.ws != nil {
		r.Methods(http.MethodGet).Path("/ws").HandlerFunc(h.ws)
	}

	return withCORS(h.cfg.Server.AllowedOrigins, r)
}

// withCORS answers preflights itself so they never reach the router.
func withCORS(origins []string, next http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case allowAll:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
