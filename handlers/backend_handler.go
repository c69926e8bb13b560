package handlers

import (
	"net/http"

	"github.com/upb/llm-router/services/discovery"
	"github.com/upb/llm-router/utils"
	"go.uber.org/zap"
)

// BackendHandler exposes the discovery registry read-only
type BackendHandler struct {
	discovery *discovery.Service
	logger    *zap.Logger
}

// NewBackendHandler creates a new BackendHandler
func NewBackendHandler(disc *discovery.Service, logger *zap.Logger) *BackendHandler {
	return &BackendHandler{
		discovery: disc,
		logger:    logger,
	}
}

// HandleListBackends handles GET /api/v1/backends
func (h *BackendHandler) HandleListBackends(w http.ResponseWriter, r *http.Request) {
	backends := h.discovery.DiscoverAll(r.Context())
	_ = utils.WriteOK(w, backends)
}

// HandleModelIndex handles GET /api/v1/backends/models
// Returns the model -> servers index over available backends
func (h *BackendHandler) HandleModelIndex(w http.ResponseWriter, r *http.Request) {
	index := h.discovery.Index(r.Context())
	_ = utils.WriteOK(w, index)
}
