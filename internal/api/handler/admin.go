package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hszk-dev/vidproxy/internal/domain/model"
	"github.com/hszk-dev/vidproxy/internal/usecase"
)

type DBInfoResponse struct {
	TotalFiles     int64                  `json:"total_files"`
	TotalSizeBytes int64                  `json:"total_size_bytes"`
	TotalSizeMB    float64                `json:"total_size_mb"`
	VideoList      []VideoSummaryResponse `json:"video_list"`
}

type VideoSummaryResponse struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	SourceURL string `json:"source_url,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// AdminHandler serves the administrative report.
type AdminHandler struct {
	svc usecase.VideoService
}

func NewAdminHandler(svc usecase.VideoService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// DBInfo handles GET /api/v1/admin/db_info?limit={n}
func (h *AdminHandler) DBInfo(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			Error(w, http.StatusBadRequest, errInvalidLimitParam, "")
			return
		}
		limit = n
	}

	stats, err := h.svc.Stats(r.Context(), limit)
	if err != nil {
		slog.Error("db info failed",
			slog.String("kind", model.KindOf(err)),
			slog.String("error", err.Error()),
		)
		Error(w, http.StatusInternalServerError, errInternal, "")
		return
	}

	JSON(w, http.StatusOK, toDBInfoResponse(stats))
}

func toDBInfoResponse(s *model.StoreStats) DBInfoResponse {
	list := make([]VideoSummaryResponse, 0, len(s.Videos))
	for _, v := range s.Videos {
		item := VideoSummaryResponse{
			ID:        v.ID,
			Filename:  v.Filename,
			SourceURL: v.SourceURL,
		}
		if !v.CreatedAt.IsZero() {
			item.CreatedAt = v.CreatedAt.Format(time.RFC3339)
		}
		list = append(list, item)
	}

	return DBInfoResponse{
		TotalFiles:     s.TotalFiles,
		TotalSizeBytes: s.TotalSizeBytes,
		TotalSizeMB:    s.TotalSizeMB(),
		VideoList:      list,
	}
}
