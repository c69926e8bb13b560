package handlers

import (
	"net/http"

	"github.com/upb/llm-router/services/resources"
	"github.com/upb/llm-router/utils"
	"go.uber.org/zap"
)

// ResourceHandler exposes the resource estimator's snapshot read-only
type ResourceHandler struct {
	estimator *resources.Estimator
	logger    *zap.Logger
}

// NewResourceHandler creates a new ResourceHandler
func NewResourceHandler(estimator *resources.Estimator, logger *zap.Logger) *ResourceHandler {
	return &ResourceHandler{
		estimator: estimator,
		logger:    logger,
	}
}

// HandleResources handles GET /api/v1/resources
func (h *ResourceHandler) HandleResources(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, h.estimator.Snapshot(r.Context()))
}
