package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ai520510xyf-del/cl-dev-tool-server/internal/client"
	"github.com/ai520510xyf-del/cl-dev-tool-server/internal/service"
)

// ApprovalFetcher is the upstream dependency of the HTTP handler.
// Satisfied by client.FeishuClient.
type ApprovalFetcher interface {
	GetApprovalInstance(ctx context.Context, instanceCode string) (*client.ApprovalInstance, error)
}

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	fetcher     ApprovalFetcher
	timeline    *service.TimelineService
	serviceName string
	version     string
	environment string
	log         zerolog.Logger
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(fetcher ApprovalFetcher, timeline *service.TimelineService, serviceName, version, environment string, log zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		fetcher:     fetcher,
		timeline:    timeline,
		serviceName: serviceName,
		version:     version,
		environment: environment,
		log:         log,
	}
}

// errorBody is the error half of the response envelope.
type errorBody struct {
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

// Root serves a small service descriptor so a bare GET / explains how
// to call the API.
func (h *HTTPHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    h.serviceName,
		"version": h.version,
		"status":  "running",
		"endpoints": map[string]string{
			"health":   "GET /health",
			"approval": "GET /api/approval/{instanceId}",
		},
	})
}

// Health reports liveness.
func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": h.environment,
	})
}

// GetApproval fetches an approval instance, normalizes it and returns
// the display payload in the success envelope.
func (h *HTTPHandler) GetApproval(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceId")
	if instanceID == "" {
		writeError(w, http.StatusBadRequest, errorBody{Message: "缺少审批实例编码"})
		return
	}

	raw, err := h.fetcher.GetApprovalInstance(r.Context(), instanceID)
	if err != nil {
		h.log.Error().Err(err).Str("instance_id", instanceID).Msg("failed to fetch approval instance")
		status, body := mapClientError(err)
		writeError(w, status, body)
		return
	}

	processed := h.timeline.ProcessApprovalData(raw, nil)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"data":      processed,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// mapClientError turns a classified upstream error into an HTTP status
// and envelope body. This is the only place error kinds meet statuses.
func mapClientError(err error) (int, errorBody) {
	body := errorBody{Message: err.Error()}
	var ce *client.Error
	if errors.As(err, &ce) {
		body.Message = ce.Message
		body.Code = ce.Code
	}

	switch client.KindOf(err) {
	case client.KindNotFound:
		return http.StatusNotFound, body
	case client.KindBadCode:
		return http.StatusBadRequest, body
	case client.KindAppUnauthorized:
		return http.StatusForbidden, body
	case client.KindTimeout:
		return http.StatusGatewayTimeout, body
	default:
		return http.StatusBadGateway, body
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, `{"success":false}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, body errorBody) {
	writeJSON(w, status, map[string]any{
		"success":   false,
		"error":     body,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
