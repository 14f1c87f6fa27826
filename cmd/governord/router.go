package main

import (
	"encoding/json"
	"net/http"

	"github.com/angeloszaimis/governor/internal/guard"
	"github.com/angeloszaimis/governor/internal/latch"
	"github.com/angeloszaimis/governor/internal/metrics"
)

func setupRouter(g *guard.Guard, collector *metrics.Collector, interlock *latch.Latch) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if err := json.NewEncoder(w).Encode(g.Status()); err != nil {
			http.Error(w, "failed to encode status", http.StatusInternalServerError)
		}
	})

	mux.HandleFunc("/metrics", collector.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if interlock.IsActive() {
			http.Error(w, "shutdown latch engaged", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}
