package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Métricas del front. Viven en un paquete aparte para que middlewares y
// controllers las usen sin ciclos de import.

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "liberty_http_requests_total",
		Help: "Requests HTTP atendidos por ruta, método y status",
	}, []string{"route", "method", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "liberty_http_request_duration_seconds",
		Help:    "Latencia de requests HTTP por ruta",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	SignIns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "liberty_signin_total",
		Help: "Logins completados por resultado (ok o código de error)",
	}, []string{"result"})

	SignOuts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "liberty_signout_total",
		Help: "Cierres de sesión",
	})
)

// Register registra las métricas en reg (o el default si nil). Registrar dos
// veces no es error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{HTTPRequests, HTTPDuration, SignIns, SignOuts} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

// NewRegistry crea un registry con runtime/process collectors y las métricas
// de la app.
func NewRegistry() (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// Handler expone g en formato Prometheus.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ObserveRequest registra un request. Los métodos fuera del estándar van como
// "other" para no abrir series por cada verbo que mande un cliente.
func ObserveRequest(route, method string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequests.WithLabelValues(route, methodLabel(method), strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

func methodLabel(m string) string {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodConnect, http.MethodOptions, http.MethodTrace:
		return m
	}
	return "other"
}

func SignInResult(result string) { SignIns.WithLabelValues(result).Inc() }

func SignOut() { SignOuts.Inc() }
