package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tradechamp/tradechamp-server/internal/handler"
	"github.com/tradechamp/tradechamp-server/internal/infrastructure/redis"
	"github.com/tradechamp/tradechamp-server/internal/infrastructure/token"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func init() {
	prometheus.MustRegister(RequestCounter, RequestDuration)
}

// Options wires the router's collaborators.
type Options struct {
	Handler        *handler.Handler
	RedisClient    redis.RedisClient
	JWTSecret      string
	AllowedOrigins []string
	Production     bool
}

func SetupRouter(opts Options) *mux.Router {
	router := mux.NewRouter()
	router.Use(metricsMiddleware)
	router.Use(CORSMiddleware(opts.AllowedOrigins, opts.Production))

	opts.Handler.RegisterPublicRoutes(router)
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// The protected subrouter has no matcher of its own, so it must come
	// after every public route.
	protected := router.NewRoute().Subrouter()
	protected.Use(token.Middleware(opts.RedisClient, opts.JWTSecret))
	opts.Handler.RegisterProtectedRoutes(protected)

	return router
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)

		status := fmt.Sprintf("%d", recorder.status)
		RequestCounter.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		RequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// statusRecorder captures the response status for the metrics labels.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}
