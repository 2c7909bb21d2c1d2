package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/examwell/examwell-backend/internal/logger"
	"github.com/examwell/examwell-backend/internal/middleware"
	"github.com/examwell/examwell-backend/internal/services"
)

type GenerationHandler struct {
	log        *logger.Logger
	generation services.QuestionGenerationService
	status     services.GenerationStatusService
}

func NewGenerationHandler(
	baseLog *logger.Logger,
	generation services.QuestionGenerationService,
	status services.GenerationStatusService,
) *GenerationHandler {
	return &GenerationHandler{
		log:        baseLog.With("handler", "GenerationHandler"),
		generation: generation,
		status:     status,
	}
}

type generateQuestionsRequest struct {
	TopicIDs []uuid.UUID `json:"topic_ids"`
}

// GenerateQuestions enqueues a generation job for a material.
// POST /api/materials/:id/generate-questions
func (h *GenerationHandler) GenerateQuestions(c *gin.Context) {
	materialID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid material id")
		return
	}

	var req generateQuestionsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	userID := middleware.CurrentUserID(c)
	job, err := h.generation.Enqueue(c.Request.Context(), userID, materialID, req.TopicIDs)
	if err != nil {
		h.log.Warn("Enqueue failed", "material_id", materialID, "error", err.Error())
		RespondError(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	RespondOK(c, http.StatusAccepted, gin.H{"job": job})
}

// GetLatestForMaterial returns the newest generation job for a material.
// GET /api/materials/:id/question-generation
func (h *GenerationHandler) GetLatestForMaterial(c *gin.Context) {
	materialID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid material id")
		return
	}

	userID := middleware.CurrentUserID(c)
	job, err := h.status.GetLatestForMaterial(c.Request.Context(), userID, materialID)
	if err != nil {
		h.log.Error("Failed to load latest job", "material_id", materialID, "error", err.Error())
		RespondError(c, http.StatusInternalServerError, "failed to load job")
		return
	}
	if job == nil {
		RespondError(c, http.StatusNotFound, "no generation job for material")
		return
	}

	RespondOK(c, http.StatusOK, gin.H{"job": job})
}

// GetJob returns one generation job by id.
// GET /api/question-generation-jobs/:id
func (h *GenerationHandler) GetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid job id")
		return
	}

	userID := middleware.CurrentUserID(c)
	job, err := h.status.GetByID(c.Request.Context(), userID, jobID)
	if err != nil {
		h.log.Error("Failed to load job", "job_id", jobID, "error", err.Error())
		RespondError(c, http.StatusInternalServerError, "failed to load job")
		return
	}
	if job == nil {
		RespondError(c, http.StatusNotFound, "job not found")
		return
	}

	RespondOK(c, http.StatusOK, gin.H{"job": job})
}
