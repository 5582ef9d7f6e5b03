package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/stroke-api/pkg/errors"
	"github.com/jwalitptl/stroke-api/pkg/httputil"
	"github.com/jwalitptl/stroke-api/pkg/validator"
)

// BindJSON decodes and validates the request body into obj. On failure it
// writes a 400 listing every broken field and returns false.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid request body", validator.Messages(err), err))
		return false
	}
	return true
}

// ParseID reads a positive integer path parameter. On failure it writes a
// 400 and returns false.
func ParseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid "+name, err))
		return 0, false
	}
	return id, true
}
