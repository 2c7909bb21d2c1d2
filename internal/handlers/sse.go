package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/examwell/examwell-backend/internal/logger"
	"github.com/examwell/examwell-backend/internal/middleware"
	"github.com/examwell/examwell-backend/internal/sse"
)

type SSEHandler struct {
	log *logger.Logger
	hub *sse.SSEHub
}

func NewSSEHandler(baseLog *logger.Logger, hub *sse.SSEHub) *SSEHandler {
	return &SSEHandler{
		log: baseLog.With("handler", "SSEHandler"),
		hub: hub,
	}
}

// StreamMaterialGeneration streams generation progress for one material.
// GET /api/materials/:id/question-generation/events
func (h *SSEHandler) StreamMaterialGeneration(c *gin.Context) {
	materialID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid material id")
		return
	}

	userID := middleware.CurrentUserID(c)
	client := h.hub.NewSSEClient(userID)
	h.hub.AddChannel(client, "question-generation:"+materialID.String())
	defer h.hub.CloseClient(client)

	h.hub.ServeHTTP(c.Writer, c.Request, client)
}
