package runs

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/dca-lab/internal/domain"
	"github.com/aristath/dca-lab/internal/modules/analytics"
	"github.com/aristath/dca-lab/internal/modules/charts"
)

// Handler handles run HTTP requests
type Handler struct {
	service *Service
	charts  *charts.Service
	log     zerolog.Logger
}

// NewHandler creates a new runs handler
func NewHandler(service *Service, charts *charts.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		charts:  charts,
		log:     log.With().Str("handler", "runs").Logger(),
	}
}

// RegisterRoutes registers all run routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/runs", func(r chi.Router) {
		r.Post("/", h.HandleSubmit)
		r.Get("/", h.HandleList)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Delete("/", h.HandleDelete)
			r.Post("/rerun", h.HandleRerun)
			r.Get("/report", h.HandleReport)
			r.Get("/equity.png", h.HandleEquityChart)
			r.Get("/drawdown.png", h.HandleDrawdownChart)
		})
	})
}

// HandleSubmit handles POST / - queue a run for background execution
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	run, err := h.service.Submit(req)
	if err != nil {
		var cfgErr *domain.ConfigError
		if errors.As(err, &cfgErr) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("Failed to submit run")
		http.Error(w, "Failed to submit run", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(run)
}

// HandleList handles GET / - list runs, newest first
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l < 1 || l > 10000 {
			http.Error(w, "Invalid limit. Must be 1-10000", http.StatusBadRequest)
			return
		}
		limit = l
	}

	runs, err := h.service.List(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runs)
}

// HandleGet handles GET /{id} - full result with summary and series
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Result(chi.URLParam(r, "id"))
	if err != nil {
		h.notFoundOrError(w, err, "Failed to get run")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// HandleDelete handles DELETE /{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(chi.URLParam(r, "id")); err != nil {
		h.notFoundOrError(w, err, "Failed to delete run")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRerun handles POST /{id}/rerun - replay a stored request as a new run
func (h *Handler) HandleRerun(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Rerun(chi.URLParam(r, "id"))
	if err != nil {
		h.notFoundOrError(w, err, "Failed to rerun")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(run)
}

// HandleReport handles GET /{id}/report - plain-text summary
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Result(chi.URLParam(r, "id"))
	if err != nil {
		h.notFoundOrError(w, err, "Failed to get run")
		return
	}
	if result.Summary == nil {
		http.Error(w, "Run has no result yet", http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(analytics.FormatReport(result.Summary, nil)))
}

// HandleEquityChart handles GET /{id}/equity.png
func (h *Handler) HandleEquityChart(w http.ResponseWriter, r *http.Request) {
	h.renderChart(w, r, h.charts.EquityChart)
}

// HandleDrawdownChart handles GET /{id}/drawdown.png
func (h *Handler) HandleDrawdownChart(w http.ResponseWriter, r *http.Request) {
	h.renderChart(w, r, h.charts.DrawdownChart)
}

func (h *Handler) renderChart(w http.ResponseWriter, r *http.Request,
	render func(string, []domain.EquityPoint) ([]byte, error)) {

	result, err := h.service.Result(chi.URLParam(r, "id"))
	if err != nil {
		h.notFoundOrError(w, err, "Failed to get run")
		return
	}
	if len(result.Curve) < 2 {
		http.Error(w, "Run has no equity curve yet", http.StatusConflict)
		return
	}

	png, err := render(result.Run.Name, result.Curve)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", result.Run.ID).Msg("Failed to render chart")
		http.Error(w, "Failed to render chart", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func (h *Handler) notFoundOrError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	h.log.Error().Err(err).Msg(msg)
	http.Error(w, msg, http.StatusInternalServerError)
}
