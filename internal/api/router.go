// Package api serves the intelligence tables and the prediction engine over
// HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tenderedge/postaward/internal/intel"
	"github.com/tenderedge/postaward/internal/model"
	"github.com/tenderedge/postaward/internal/predict"
	"github.com/tenderedge/postaward/internal/store"
)

const (
	sectorCompetitorLimit = 20
	allCompetitorLimit    = 30
	defaultInsightLimit   = 20
	maxBodyBytes          = 1 << 20
)

type handler struct {
	store    store.Store
	analyzer *intel.Analyzer
	engine   *predict.Engine
}

// TPSRequest is the body of POST /api/v1/tps.
type TPSRequest struct {
	Tender  model.Tender           `json:"tender"`
	Company predict.CompanyProfile `json:"company"`
}

// NewRouter builds the API routes. origins lists the allowed CORS origins.
func NewRouter(st store.Store, engine *predict.Engine, origins []string) http.Handler {
	h := &handler{store: st, analyzer: intel.NewAnalyzer(st), engine: engine}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/report", h.report)
		r.Get("/competitors", h.listCompetitors)
		r.Get("/competitors/{name}", h.getCompetitor)
		r.Get("/pe/{name}", h.getPE)
		r.Get("/pricing/{sector}", h.pricing)
		r.Get("/insights", h.insights)
		r.Post("/tps", h.tps)
	})
	return r
}

func (h *handler) report(w http.ResponseWriter, r *http.Request) {
	rep, err := h.analyzer.Report(r.Context())
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *handler) listCompetitors(w http.ResponseWriter, r *http.Request) {
	sector := r.URL.Query().Get("sector")
	limit := allCompetitorLimit
	if sector != "" {
		limit = sectorCompetitorLimit
	}
	list, err := h.store.ListCompetitors(r.Context(), sector, limit)
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(list))
}

func (h *handler) getCompetitor(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	c, err := h.store.FindCompetitor(r.Context(), name)
	if err != nil {
		serverError(w, r, err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no competitor matching %q", name))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) getPE(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	pe, err := h.store.FindPEProfile(r.Context(), name)
	if err != nil {
		serverError(w, r, err)
		return
	}
	if pe == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no procuring entity matching %q", name))
		return
	}
	writeJSON(w, http.StatusOK, pe)
}

func (h *handler) pricing(w http.ResponseWriter, r *http.Request) {
	sector := pathParam(r, "sector")
	if !model.IsSector(sector) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown sector %q", sector))
		return
	}
	b, err := h.analyzer.Pricing(r.Context(), sector)
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *handler) insights(w http.ResponseWriter, r *http.Request) {
	limit := defaultInsightLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	list, err := h.store.ListInsights(r.Context(), limit)
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(list))
}

func (h *handler) tps(w http.ResponseWriter, r *http.Request) {
	var req TPSRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Tender.Sector == "" {
		writeError(w, http.StatusBadRequest, "tender.sector is required")
		return
	}
	if err := req.Company.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.engine.Score(r.Context(), req.Tender, req.Company)
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func serverError(w http.ResponseWriter, r *http.Request, err error) {
	zap.L().Error("api: request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// ListenAndServe serves h on port until ctx is cancelled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, h http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "api: listen")
	}
	return nil
}
