package httpapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/icewall905/tuneforge/internal/constants"
	"github.com/icewall905/tuneforge/internal/domain"
	"github.com/icewall905/tuneforge/internal/expansion"
	"github.com/icewall905/tuneforge/internal/logger"
	"github.com/icewall905/tuneforge/internal/store"
)

// JobService is the job registry as seen by the API.
type JobService interface {
	Start(ctx context.Context, req expansion.StartRequest) (string, error)
	Status(ctx context.Context, id string) (domain.JobSnapshot, error)
	Stop(ctx context.Context, id string) error
	Result(ctx context.Context, id string) ([]domain.ScoredCandidate, error)
	List(ctx context.Context, limit int) ([]domain.JobSnapshot, error)
	ClearFinished(ctx context.Context) (int, error)
	ActiveCount() int
}

type SimilarityService interface {
	FeatureStats(ctx context.Context) domain.FeatureStats
	Weights() domain.Weights
	MaxDistance() float64
	CacheSize() int
	VectorFor(ctx context.Context, trackID int64) (domain.Vector, bool)
	Distance(a, b domain.Vector) float64
}

type Catalog interface {
	Healthy(ctx context.Context) bool
	ValidateSchema(ctx context.Context) (bool, []string)
	Coverage(ctx context.Context) (withFeatures, total int, err error)
	GetJobStats(ctx context.Context) (*store.JobStats, error)
}

type Handler struct {
	Jobs       JobService
	Similarity SimilarityService
	Catalog    Catalog
	Metrics    http.Handler
	Logger     *logger.Logger
	// HistoryLimit caps how many jobs the list endpoint pages through.
	HistoryLimit int
}

func NewHandler(jobs JobService, sim SimilarityService, catalog Catalog, metrics http.Handler, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{
		Jobs:         jobs,
		Similarity:   sim,
		Catalog:      catalog,
		Metrics:      metrics,
		Logger:       log.WithComponent("http"),
		HistoryLimit: constants.DefaultJobRetention,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Health)
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics)
	}

	r.Route("/api/sonic", func(r chi.Router) {
		r.Post("/start", h.StartJob)
		r.Get("/status/{id}", h.JobStatus)
		r.Post("/stop/{id}", h.StopJob)
		r.Get("/result/{id}", h.JobResult)
		r.Get("/jobs", h.ListJobs)
		r.Post("/clear", h.ClearJobs)
		r.Get("/stats", h.Stats)
		r.Get("/schema", h.Schema)
		r.Get("/distance", h.Distance)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Warn("Failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// writeJobError maps registry errors to status codes.
func (h *Handler) writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, expansion.ErrJobNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, expansion.ErrJobPending):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, expansion.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.Logger.Error("Job request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}
