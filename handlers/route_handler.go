package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/upb/llm-router/services/routing"
	"github.com/upb/llm-router/services/scoring"
	"github.com/upb/llm-router/utils"
	"go.uber.org/zap"
)

// RouteHandler exposes the routing facade over HTTP
type RouteHandler struct {
	router *routing.Service
	logger *zap.Logger
}

// NewRouteHandler creates a new RouteHandler
func NewRouteHandler(router *routing.Service, logger *zap.Logger) *RouteHandler {
	return &RouteHandler{
		router: router,
		logger: logger,
	}
}

// HandleRoute handles POST /api/v1/route
// Returns the selection without calling any backend
func (h *RouteHandler) HandleRoute(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	selection, err := h.router.Route(r.Context(), req)
	if err != nil {
		h.writeRoutingError(w, err)
		return
	}

	_ = utils.WriteOK(w, selection)
}

// HandleGenerate handles POST /api/v1/generate
// Routes the task and executes it against the chosen backend with fallback
func (h *RouteHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	result, err := h.router.Execute(r.Context(), req)
	if err != nil {
		h.writeRoutingError(w, err)
		return
	}

	_ = utils.WriteOK(w, result)
}

// decodeRequest parses and validates the request body, writing the error
// response itself when the body is unusable
func (h *RouteHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (routing.Request, bool) {
	var req routing.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "invalid JSON body", nil)
		return req, false
	}

	if err := utils.ValidateStruct(req); err != nil {
		var ve *utils.ValidationError
		if errors.As(err, &ve) {
			_ = utils.WriteBadRequest(w, ve.Message, ve.FieldDetails())
		} else {
			_ = utils.WriteBadRequest(w, err.Error(), nil)
		}
		return req, false
	}

	return req, true
}

// writeRoutingError maps routing failures onto HTTP statuses
func (h *RouteHandler) writeRoutingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, routing.ErrEmptyTask):
		_ = utils.WriteBadRequest(w, err.Error(), nil)
	case errors.Is(err, scoring.ErrNoCandidates):
		_ = utils.WriteServiceUnavailable(w, "no backend currently serves any eligible model")
	case errors.Is(err, routing.ErrAllAttemptsFailed):
		_ = utils.WriteServiceUnavailable(w, err.Error())
	default:
		h.logger.Error("routing request failed", zap.Error(err))
		_ = utils.WriteInternalError(w, "")
	}
}
