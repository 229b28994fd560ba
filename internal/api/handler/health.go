package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hszk-dev/vidproxy/internal/usecase"
)

const healthCheckTimeout = 3 * time.Second

type HealthResponse struct {
	Status string `json:"status"`
}

// HealthHandler reports whether the video store is reachable.
type HealthHandler struct {
	svc usecase.VideoService
}

func NewHealthHandler(svc usecase.VideoService) *HealthHandler {
	return &HealthHandler{svc: svc}
}

// Health handles GET /health and GET /api/v1/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := h.svc.Health(ctx); err != nil {
		slog.Warn("health check failed", slog.String("error", err.Error()))
		JSON(w, http.StatusInternalServerError, HealthResponse{Status: "unhealthy"})
		return
	}

	JSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}
