package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hszk-dev/vidproxy/internal/domain/model"
	"github.com/hszk-dev/vidproxy/internal/urlcodec"
	"github.com/hszk-dev/vidproxy/internal/usecase"
)

const defaultStreamContentType = "application/octet-stream"

type ResolveResponse struct {
	Message        string `json:"message"`
	VideoDownload  string `json:"video_download"`
	VideoName      string `json:"video_name"`
	VideoThumbnail string `json:"video_thumbnail,omitempty"`
}

// VideoHandler handles resolve and stream requests.
type VideoHandler struct {
	videos  usecase.VideoService
	streams usecase.StreamService
}

// NewVideoHandler creates a new VideoHandler.
func NewVideoHandler(videos usecase.VideoService, streams usecase.StreamService) *VideoHandler {
	return &VideoHandler{videos: videos, streams: streams}
}

// Resolve handles GET /api/v1/resolve?url={token}
func (h *VideoHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	sourceURL, ok := decodeURLParam(w, r)
	if !ok {
		return
	}

	out, err := h.videos.Resolve(r.Context(), sourceURL)
	if err != nil {
		h.handleResolveError(w, r, err)
		return
	}

	resp := ResolveResponse{
		Message:       "ok",
		VideoDownload: out.DownloadURL,
		VideoName:     out.Filename,
	}
	if out.Created {
		resp.VideoThumbnail = out.Thumbnail
	}
	JSON(w, http.StatusOK, resp)
}

// Stream handles GET /api/v1/stream?url={token}
func (h *VideoHandler) Stream(w http.ResponseWriter, r *http.Request) {
	mediaURL, ok := decodeURLParam(w, r)
	if !ok {
		return
	}

	sink := &responseSink{w: w, rc: http.NewResponseController(w)}
	err := h.streams.Relay(r.Context(), mediaURL, sink)
	if err == nil {
		return
	}

	if !sink.started {
		h.handleStreamError(w, r, err)
		return
	}

	if errors.Is(err, usecase.ErrClientGone) {
		slog.Debug("client left during stream",
			slog.String("media_url", mediaURL),
			slog.String("error", err.Error()),
		)
		return
	}

	// The status line is already committed. Abort the connection so the
	// client sees a truncated body instead of a clean end of stream.
	panic(http.ErrAbortHandler)
}

// decodeURLParam writes the 400 response itself when the token is unusable.
func decodeURLParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	decoded, err := urlcodec.Decode(r.URL.Query().Get("url"))
	switch {
	case err == nil:
		return decoded, true
	case errors.Is(err, model.ErrMissingParameter):
		Error(w, http.StatusBadRequest, errMissingURL, "")
	case errors.Is(err, model.ErrInvalidEncoding):
		Error(w, http.StatusBadRequest, errInvalidEncoding, "")
	default:
		Error(w, http.StatusBadRequest, errInvalidURL, "")
	}
	return "", false
}

func (h *VideoHandler) handleResolveError(w http.ResponseWriter, r *http.Request, err error) {
	logFailure(r, "resolve failed", err)

	switch {
	case errors.Is(err, model.ErrUpstreamTimeout):
		Error(w, http.StatusInternalServerError, errTimedOut, "")
	case errors.Is(err, model.ErrUpstream):
		Error(w, http.StatusInternalServerError, errInvalidURL, "")
	case errors.Is(err, model.ErrMalformedUpstreamResponse):
		Error(w, http.StatusInternalServerError, errInternal, model.ErrMalformedUpstreamResponse.Error())
	case errors.Is(err, model.ErrStorageUnavailable):
		Error(w, http.StatusInternalServerError, errInternal, model.ErrStorageUnavailable.Error())
	default:
		Error(w, http.StatusInternalServerError, errInternal, "")
	}
}

func (h *VideoHandler) handleStreamError(w http.ResponseWriter, r *http.Request, err error) {
	logFailure(r, "stream failed", err)

	switch {
	case errors.Is(err, model.ErrUpstreamTimeout):
		Error(w, http.StatusGatewayTimeout, errTimedOut, "")
	case errors.Is(err, model.ErrUpstream):
		Error(w, http.StatusInternalServerError, errVideoUnavailable, "")
	case errors.Is(err, model.ErrInvalidURL):
		Error(w, http.StatusBadRequest, errInvalidURL, "")
	default:
		Error(w, http.StatusInternalServerError, errInternal, "")
	}
}

func logFailure(r *http.Request, msg string, err error) {
	slog.Warn(msg,
		slog.String("path", r.URL.Path),
		slog.String("kind", model.KindOf(err)),
		slog.String("error", err.Error()),
	)
}

// responseSink writes relayed chunks to the client, flushing each one.
type responseSink struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
}

func (s *responseSink) Start(contentType string) {
	s.started = true
	if contentType == "" {
		contentType = defaultStreamContentType
	}
	// The server write timeout would otherwise cut long relays short.
	_ = s.rc.SetWriteDeadline(time.Time{})

	s.w.Header().Set("Content-Type", contentType)
	s.w.WriteHeader(http.StatusOK)
}

func (s *responseSink) Write(chunk []byte) error {
	if _, err := s.w.Write(chunk); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}
