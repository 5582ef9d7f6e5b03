package exchange

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/stroke-api/internal/handler"
	"github.com/jwalitptl/stroke-api/internal/middleware"
	"github.com/jwalitptl/stroke-api/internal/model"
	"github.com/jwalitptl/stroke-api/internal/service/exchange"
	apperrors "github.com/jwalitptl/stroke-api/pkg/errors"
	"github.com/jwalitptl/stroke-api/pkg/httputil"
)

const uploadField = "file"

type Handler struct {
	service exchange.ExchangeService
}

func NewHandler(service exchange.ExchangeService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("/import", h.ImportPatients)
		patients.GET("/export", h.ExportPatients)
	}

	datasets := r.Group("/datasets")
	{
		datasets.GET("", h.ListDatasets)
		datasets.DELETE("/:id", h.DeleteDataset)
	}
}

// ImportPatients accepts a multipart upload in the "file" field. The
// optional "strict" form value overrides the configured import mode.
func (h *Handler) ImportPatients(c *gin.Context) {
	fh, err := c.FormFile(uploadField)
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("a csv file is required in the \"file\" field", err))
		return
	}

	file, err := fh.Open()
	if err != nil {
		httputil.RespondWithError(c, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer file.Close()

	opts := exchange.ImportOptions{Name: filepath.Base(fh.Filename)}
	if principal, ok := middleware.GetPrincipal(c); ok {
		opts.UploadedBy = &principal.UserID
	}
	if raw, ok := c.GetPostForm("strict"); ok {
		strict := raw == "1" || raw == "true"
		opts.Strict = &strict
	}

	result, err := h.service.Import(c.Request.Context(), file, opts)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, &httputil.Response{
		Status:  "success",
		Message: fmt.Sprintf("Upload complete. Imported %d, skipped %d.", result.Imported, result.Skipped),
		Data:    result,
	})
}

// ExportPatients streams the filtered records as a CSV download. The body
// is rendered before any header is sent so a failed search still gets a
// JSON error.
func (h *Handler) ExportPatients(c *gin.Context) {
	var params model.PatientSearchParams
	if err := c.ShouldBindQuery(&params); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid query parameters", err))
		return
	}

	var buf bytes.Buffer
	if _, err := h.service.Export(c.Request.Context(), &buf, params); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", exchange.ExportFilename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *Handler) ListDatasets(c *gin.Context) {
	datasets, err := h.service.ListDatasets(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, datasets)
}

func (h *Handler) DeleteDataset(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteDataset(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithMessage(c, http.StatusOK, "dataset deleted")
}
