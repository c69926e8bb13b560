package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/services/batch"
	"github.com/upb/llm-router/services/routing"
	"github.com/upb/llm-router/utils"
	"go.uber.org/zap"
)

// BatchRequest carries many independent tasks to run as one batch
type BatchRequest struct {
	Tasks []string `json:"tasks" validate:"required,min=1"`

	// TaskType optionally applies to every task in the batch
	TaskType string `json:"task_type,omitempty"`

	// QualityRequirement applies to every task in the batch
	QualityRequirement models.QualityRequirement `json:"quality_requirement,omitempty"`
}

// BatchResponse summarizes a completed batch run
type BatchResponse struct {
	Total     int                  `json:"total"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
	Skipped   int                  `json:"skipped"`
	Results   []models.BatchResult `json:"results"`
}

// BatchHandler runs task batches through the routing facade
type BatchHandler struct {
	executor *batch.Executor
	router   *routing.Service
	logger   *zap.Logger
}

// NewBatchHandler creates a new BatchHandler
func NewBatchHandler(executor *batch.Executor, router *routing.Service, logger *zap.Logger) *BatchHandler {
	return &BatchHandler{
		executor: executor,
		router:   router,
		logger:   logger,
	}
}

// HandleBatch handles POST /api/v1/batch
// Each task is routed and executed independently; the circuit breaker stops
// admitting work once the backends are clearly failing
func (h *BatchHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "invalid JSON body", nil)
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		var ve *utils.ValidationError
		if errors.As(err, &ve) {
			_ = utils.WriteBadRequest(w, ve.Message, ve.FieldDetails())
		} else {
			_ = utils.WriteBadRequest(w, err.Error(), nil)
		}
		return
	}

	items := make([]any, len(req.Tasks))
	for i, task := range req.Tasks {
		items[i] = task
	}

	results := h.executor.RunBatch(r.Context(), items, func(ctx context.Context, item any) (any, error) {
		res, err := h.router.Execute(ctx, routing.Request{
			Task:               item.(string),
			TaskType:           req.TaskType,
			QualityRequirement: req.QualityRequirement,
		})
		if err != nil {
			return nil, err
		}
		return res, nil
	})

	resp := BatchResponse{Total: len(results), Results: results}
	for _, res := range results {
		switch {
		case res.Skipped:
			resp.Skipped++
		case res.Success:
			resp.Succeeded++
		default:
			resp.Failed++
		}
	}

	_ = utils.WriteOK(w, resp)
}
