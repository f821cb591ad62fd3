package httpapp

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/icewall905/tuneforge/internal/domain"
	"github.com/icewall905/tuneforge/internal/http/dto"
)

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if !h.Catalog.Healthy(r.Context()) {
		h.writeError(w, http.StatusServiceUnavailable, "catalog unavailable")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"active_jobs": h.Jobs.ActiveCount(),
	})
}

func (h *Handler) StartJob(w http.ResponseWriter, r *http.Request) {
	var req dto.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  dto.ToResponse(errs),
			"fields": dto.ToMap(errs),
		})
		return
	}

	id, err := h.Jobs.Start(r.Context(), req.ToDomain())
	if err != nil {
		h.writeJobError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, dto.StartResponse{JobID: id, Status: string(domain.JobStatusQueued)})
}

func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Jobs.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeJobError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewJobResponse(snap))
}

func (h *Handler) StopJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Jobs.Stop(r.Context(), id); err != nil {
		h.writeJobError(w, err)
		return
	}
	snap, err := h.Jobs.Status(r.Context(), id)
	if err != nil {
		h.writeJobError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewJobResponse(snap))
}

func (h *Handler) JobResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tracks, err := h.Jobs.Result(r.Context(), id)
	if err != nil {
		h.writeJobError(w, err)
		return
	}
	snap, err := h.Jobs.Status(r.Context(), id)
	if err != nil {
		h.writeJobError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.ResultResponse{
		JobID:  id,
		Status: string(snap.Status),
		Tracks: dto.NewTrackResponses(tracks),
	})
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	jobs, err := h.Jobs.List(r.Context(), h.HistoryLimit)
	if err != nil {
		h.writeJobError(w, err)
		return
	}

	p := dto.NewPagination(page, pageSize, len(jobs))
	start, end := p.Bounds()
	resp := dto.JobListResponse{Jobs: make([]dto.JobResponse, 0, end-start), Pagination: p}
	for _, j := range jobs[start:end] {
		resp.Jobs = append(resp.Jobs, dto.NewJobResponse(j))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ClearJobs(w http.ResponseWriter, r *http.Request) {
	n, err := h.Jobs.ClearFinished(r.Context())
	if err != nil {
		h.writeJobError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	weights := make(map[string]float64, domain.NumFeatures)
	w8 := h.Similarity.Weights()
	for _, f := range domain.Features() {
		weights[f.String()] = w8[f]
	}

	resp := map[string]interface{}{
		"features":          h.Similarity.FeatureStats(r.Context()).ByName(),
		"weights":           weights,
		"max_distance":      h.Similarity.MaxDistance(),
		"vector_cache_size": h.Similarity.CacheSize(),
		"active_jobs":       h.Jobs.ActiveCount(),
	}

	if history, err := h.Catalog.GetJobStats(r.Context()); err != nil {
		h.Logger.Warn("Failed to get job stats", "error", err)
	} else {
		resp["history"] = history
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Schema(w http.ResponseWriter, r *http.Request) {
	valid, missing := h.Catalog.ValidateSchema(r.Context())
	if missing == nil {
		missing = []string{}
	}
	resp := map[string]interface{}{
		"valid":   valid,
		"missing": missing,
	}

	if valid {
		withFeatures, total, err := h.Catalog.Coverage(r.Context())
		if err != nil {
			h.Logger.Warn("Failed to compute feature coverage", "error", err)
		} else {
			resp["tracks_with_features"] = withFeatures
			resp["total_tracks"] = total
		}
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Distance compares two catalog tracks: GET /api/sonic/distance?a=1&b=2.
func (h *Handler) Distance(w http.ResponseWriter, r *http.Request) {
	a, errA := strconv.ParseInt(r.URL.Query().Get("a"), 10, 64)
	b, errB := strconv.ParseInt(r.URL.Query().Get("b"), 10, 64)
	if errA != nil || errB != nil {
		h.writeError(w, http.StatusBadRequest, "a and b must be track ids")
		return
	}

	va, ok := h.Similarity.VectorFor(r.Context(), a)
	if !ok {
		h.writeError(w, http.StatusNotFound, "track "+strconv.FormatInt(a, 10)+" has no audio features")
		return
	}
	vb, ok := h.Similarity.VectorFor(r.Context(), b)
	if !ok {
		h.writeError(w, http.StatusNotFound, "track "+strconv.FormatInt(b, 10)+" has no audio features")
		return
	}

	d := h.Similarity.Distance(va, vb)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"a":            a,
		"b":            b,
		"distance":     d,
		"max_distance": h.Similarity.MaxDistance(),
	})
}
