package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spotd/internal/broadcast"
	"spotd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Status() types.StatusResponse
	Health() types.HealthResponse
	Ready() bool
	Reconcile(ctx context.Context, req types.ReportRequest) (types.ReportResponse, error)
	Forecast(ctx context.Context, q types.ForecastQuery) types.ForecastResponse
}

// NewMux builds the router. hub feeds the /api/stream and /api/ws push
// endpoints; everything else goes through svc.
func NewMux(svc Service, hub *broadcast.Broadcaster) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(MetricsMiddleware)

	r.Route("/api", func(api chi.Router) {
		// Compression for JSON endpoints only; the push endpoints need the
		// raw connection.
		api.Group(func(g chi.Router) {
			g.Use(middleware.Compress(5))
			g.Get("/status", handleStatus(svc))
			g.Post("/report", handleReport(svc))
			// Path the original sensor firmware posts to.
			g.Post("/update-parking", handleReport(svc))
			g.Post("/predict", handlePredict(svc))
			g.Get("/health", handleHealth(svc))
		})
		api.Get("/stream", handleStream(svc, hub))
		api.Get("/ws", handleSocket(svc, hub))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// handleStatus godoc
// @Summary  Current parking status
// @Produce  json
// @Success  200 {object} types.StatusResponse
// @Router   /api/status [get]
func handleStatus(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	}
}

// handleHealth godoc
// @Summary  Liveness and uptime
// @Produce  json
// @Success  200 {object} types.HealthResponse
// @Router   /api/health [get]
func handleHealth(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Health())
	}
}

// handleReport godoc
// @Summary  Ingest one hardware report
// @Accept   json
// @Produce  json
// @Param    report body types.ReportRequest true "one reading per configured slot"
// @Success  200 {object} types.ReportResponse
// @Failure  400 {object} types.ErrorResponse
// @Router   /api/report [post]
func handleReport(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireJSON(w, r) {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.ReportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if len(req.Slots) == 0 {
			writeJSONError(w, http.StatusBadRequest, "slots is required")
			return
		}

		start := time.Now()
		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		resp, err := svc.Reconcile(joinedCtx, req)
		if err != nil {
			status, msg := mapServiceError(err)
			writeJSONError(w, status, msg)
			logRequest(r, status, start, err)
			return
		}
		ObserveReport(resp)
		writeJSON(w, http.StatusOK, resp)
		logRequest(r, http.StatusOK, start, nil)
	}
}

// handlePredict godoc
// @Summary  Occupancy forecast for a day and hour
// @Accept   json
// @Produce  json
// @Param    query body types.ForecastQuery true "target day-of-week and hour"
// @Success  200 {object} types.ForecastResponse
// @Failure  400 {object} types.ErrorResponse
// @Router   /api/predict [post]
func handlePredict(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireJSON(w, r) {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var q types.ForecastQuery
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if !types.ValidDay(q.DayOfWeek) {
			writeJSONError(w, http.StatusBadRequest,
				"day_of_week must be one of: "+strings.Join(types.DayNames[:], ", "))
			return
		}
		if q.Hour < 0 || q.Hour > 23 {
			writeJSONError(w, http.StatusBadRequest, "hour must be a number between 0 and 23")
			return
		}

		start := time.Now()
		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		resp := svc.Forecast(joinedCtx, q)
		ObserveForecast(resp.Prediction.Source)
		writeJSON(w, http.StatusOK, resp)
		logRequest(r, http.StatusOK, start, nil)
	}
}

func requireJSON(w http.ResponseWriter, r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logError("encode response", err)
	}
}
