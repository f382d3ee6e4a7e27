package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/betfaro_server/internal/pkg/response"
	"github.com/qs3c/betfaro_server/internal/service"
)

type PicksHandler struct {
	picksService *service.PicksService
}

func NewPicksHandler(picksService *service.PicksService) *PicksHandler {
	return &PicksHandler{picksService: picksService}
}

// Get Elite 专属，上游 JSON 原样返回
// GET /api/picks?range=today|tomorrow|both&refresh=true
func (h *PicksHandler) Get(c *gin.Context) {
	body, err := h.picksService.Fetch(c.Request.Context(), c.Query("range"), c.Query("refresh") == "true")
	if err != nil {
		handleError(c, err)
		return
	}

	response.Raw(c, body)
}
