package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shopfloor"

// Listener serves /metrics for a worker binary that has no HTTP router.
type Listener struct {
	srv *http.Server
}

func NewListener(addr string, g prometheus.Gatherer) *Listener {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return &Listener{srv: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

func (l *Listener) Handler() http.Handler { return l.srv.Handler }

// Start listens in the background. onErr receives a failure to bind or serve.
func (l *Listener) Start(onErr func(error)) {
	go func() {
		if err := l.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) && onErr != nil {
			onErr(err)
		}
	}()
}

func (l *Listener) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return l.srv.Shutdown(ctx)
}
