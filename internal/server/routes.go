package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openmined/stageup/internal/server/handlers/api"
	"github.com/openmined/stageup/internal/server/handlers/batch"
	"github.com/openmined/stageup/internal/server/handlers/meta"
	"github.com/openmined/stageup/internal/server/handlers/upload"
	"github.com/openmined/stageup/internal/server/middlewares"
)

// multipart parts over this size are spooled to temp files by net/http
const maxMultipartMemory = 8 << 20 // 8 MiB

func SetupRoutes(config *Config, svc *Services) (http.Handler, error) {
	r := gin.New()
	r.MaxMultipartMemory = maxMultipartMemory

	uploadLimit, err := middlewares.RateLimiter(config.HTTP.UploadRate)
	if err != nil {
		return nil, err
	}

	metaH := meta.New(svc.Destinations, config.WellKnownDir)
	uploadH := upload.New(svc.Uploader, svc.Destinations, config.UploadDir)
	batchH := batch.New(svc.Registry)

	r.Use(middlewares.Logger(nil))
	r.Use(gin.Recovery())
	r.Use(middlewares.GZIP())
	r.Use(middlewares.CORS())
	if config.HTTP.TLS() {
		r.Use(middlewares.HSTS())
	}

	r.GET("/", metaH.Index)
	r.GET("/healthz", metaH.Health)
	r.GET("/.well-known/assetlinks.json", metaH.AssetLinks)

	r.POST("/upload",
		uploadLimit,
		middlewares.BodyLimit(config.HTTP.MaxContentLength),
		uploadH.Upload,
	)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/destinations", metaH.Destinations)
		v1.GET("/batches", batchH.List)
		v1.GET("/batches/:id", batchH.Get)
	}

	r.NoRoute(func(c *gin.Context) {
		api.AbortWithError(c, http.StatusNotFound, api.CodeNotFound, errors.New("not found"))
	})

	r.NoMethod(func(c *gin.Context) {
		api.AbortWithError(c, http.StatusMethodNotAllowed, api.CodeInvalidRequest, errors.New("method not allowed"))
	})

	return r.Handler(), nil
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
