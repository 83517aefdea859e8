package batch

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openmined/stageup/internal/server/handlers/api"
	"github.com/openmined/stageup/internal/uploader"
)

type BatchHandler struct {
	registry *uploader.Registry
}

func New(registry *uploader.Registry) *BatchHandler {
	return &BatchHandler{registry: registry}
}

type ListResponse struct {
	Batches []*uploader.BatchInfo `json:"batches"`
	Active  int                   `json:"active"`
}

func (h *BatchHandler) List(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, &ListResponse{
		Batches: h.registry.List(),
		Active:  h.registry.Active(),
	})
}

func (h *BatchHandler) Get(ctx *gin.Context) {
	info, err := h.registry.Get(ctx.Param("id"))
	if errors.Is(err, uploader.ErrBatchNotFound) {
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeBatchNotFound, err)
		return
	} else if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}
	ctx.PureJSON(http.StatusOK, info)
}
