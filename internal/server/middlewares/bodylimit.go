package middlewares

import (
	"fmt"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"github.com/openmined/stageup/internal/server/handlers/api"
)

// BodyLimit rejects requests whose declared length is over limit and caps
// the body reader for the rest. Handlers see *http.MaxBytesError when a body
// without a declared length runs over.
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			api.AbortWithError(c, http.StatusRequestEntityTooLarge, api.CodeRequestTooLarge,
				fmt.Errorf("request body over %s", humanize.IBytes(uint64(limit))))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
