package service

import (
	"context"
	"net/http"
	"time"

	"github.com/francois-poidevin/flightmap/internal/app"
	"github.com/francois-poidevin/flightmap/internal/app/tools"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type ctxKey int

const requestIDKey ctxKey = iota

const flightsPath = "/api/flights"

// fallbackBody is written if a snapshot cannot be encoded, so the endpoint still answers 200.
var fallbackBody = []byte(`{"count":0,"flights":[],"source":"fallback"}`)

// RequestID returns the id attached to the request context by the router.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Handler builds the HTTP API. rateLimit is in requests per minute and per IP, 0 disables it.
// /api/flights is never limited: it always answers 200 with a snapshot, the upstream being
// protected by the source's own limiter and breaker.
func (s *Service) Handler(rateLimit int) http.Handler {
	r := mux.NewRouter()
	r.Use(s.accessLog)

	r.HandleFunc("/", rootHandler).Methods(http.MethodGet)
	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/health", healthHandler).Methods(http.MethodGet)
	r.HandleFunc(flightsPath, s.flightsHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	var h http.Handler = r
	if rateLimit > 0 {
		h = exceptFlights(r, httprate.LimitByIP(rateLimit, time.Minute)(r))
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})(h)
}

func exceptFlights(open, limited http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == flightsPath {
			open.ServeHTTP(w, r)
			return
		}
		limited.ServeHTTP(w, r)
	})
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Flight backend running"))
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"ok":true}`))
}

//Serve the current snapshot
// params : optional bbox 'lat,lon^lat,lon'
// return : json {count, flights, source}
func (s *Service) flightsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	w.Header().Set("Content-Type", "application/json")

	var bbox *tools.Bbox
	if bboxParam := r.URL.Query().Get("bbox"); bboxParam != "" {
		parsed, errBBox := tools.GetBbox(bboxParam)
		if errBBox != nil {
			s.Log.WithContext(ctx).WithFields(logrus.Fields{
				"Error":     errBBox,
				"bbox":      bboxParam,
				"requestId": RequestID(ctx),
			}).Warn("Ignoring malformed bbox parameter")
		} else {
			bbox = &parsed
		}
	}

	snap := s.Flights(ctx, bbox)
	w.WriteHeader(http.StatusOK)
	w.Write(encodeSnapshot(ctx, s.Log, snap))
}

func encodeSnapshot(ctx context.Context, log *logrus.Logger, snap app.Snapshot) []byte {
	body, errJSONMarshal := json.Marshal(snap)
	if errJSONMarshal != nil {
		log.WithContext(ctx).WithFields(logrus.Fields{
			"Error": errJSONMarshal,
		}).Error("Unable to encode snapshot")
		return fallbackBody
	}
	return body
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Service) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		s.Log.WithContext(ctx).WithFields(logrus.Fields{
			"requestId": id,
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    rec.status,
			"duration":  time.Since(start).String(),
		}).Info("HTTP request")
	})
}
