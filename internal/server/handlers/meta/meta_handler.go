package meta

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/openmined/stageup/internal/server/handlers/api"
	"github.com/openmined/stageup/internal/utils"
	"github.com/openmined/stageup/internal/version"
)

const assetLinksFile = "assetlinks.json"

type DestinationLister interface {
	Names() []string
}

// MetaHandler serves the informational endpoints.
type MetaHandler struct {
	destinations DestinationLister
	wellKnownDir string
}

func New(destinations DestinationLister, wellKnownDir string) *MetaHandler {
	return &MetaHandler{destinations: destinations, wellKnownDir: wellKnownDir}
}

func (h *MetaHandler) Index(ctx *gin.Context) {
	ctx.String(http.StatusOK, version.DetailedWithApp())
}

func (h *MetaHandler) Health(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
		"ok":     true,
	})
}

func (h *MetaHandler) Destinations(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"destinations": h.destinations.Names(),
	})
}

// AssetLinks serves the Android app association file when one is deployed.
func (h *MetaHandler) AssetLinks(ctx *gin.Context) {
	path := filepath.Join(h.wellKnownDir, assetLinksFile)
	if h.wellKnownDir == "" || !utils.FileExists(path) {
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeNotFound, errors.New("not found"))
		return
	}
	ctx.Header("Content-Type", "application/json")
	ctx.File(path)
}
