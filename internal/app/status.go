package app

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mholloway/switchback/internal/log"
)

// metrics counts the daemon's activity for the /metrics endpoint.
type metrics struct {
	wakes         prometheus.Counter
	sets          prometheus.Counter
	setFailures   prometheus.Counter
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	blendFailures prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		wakes: f.NewCounter(prometheus.CounterOpts{
			Name: "switchback_loop_wakes_total",
			Help: "Scheduler loop iterations.",
		}),
		sets: f.NewCounter(prometheus.CounterOpts{
			Name: "switchback_wallpaper_sets_total",
			Help: "Successful wallpaper changes.",
		}),
		setFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "switchback_wallpaper_set_failures_total",
			Help: "Failed wallpaper change attempts.",
		}),
		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "switchback_blend_cache_hits_total",
			Help: "Blends served from the cache.",
		}),
		cacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "switchback_blend_cache_misses_total",
			Help: "Blends generated on a cache miss.",
		}),
		blendFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "switchback_blend_failures_total",
			Help: "Blend generations that failed and fell back to a plain wallpaper.",
		}),
	}
}

// statusServer exposes /healthz, /state and /metrics when
// settings.status_listen is configured.
type statusServer struct {
	srv *http.Server
}

func newStatusServer(listen string, engine *Engine, reg *prometheus.Registry) *statusServer {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/state", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(engine.LastState()); err != nil {
			log.Errorf("encoding state response: %v", err)
		}
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return &statusServer{srv: &http.Server{
		Addr:         listen,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}}
}

func (s *statusServer) start() {
	go func() {
		log.Infof("status server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("status server: %v", err)
		}
	}()
}

func (s *statusServer) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		log.Warnf("status server shutdown: %v", err)
	}
}
