package api

import "github.com/gin-gonic/gin"

// AbortWithError stops the handler chain, records err for the request logger
// and writes it as an APIError body.
func AbortWithError(ctx *gin.Context, status int, code string, err error) {
	ctx.Abort()
	_ = ctx.Error(err)
	ctx.PureJSON(status, APIError{
		Code:    code,
		Message: err.Error(),
	})
}
