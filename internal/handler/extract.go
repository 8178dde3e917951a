package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"streetclip/internal/dataset"
	"streetclip/internal/geocode"
	"streetclip/internal/geometry"
	"streetclip/internal/models"
	"streetclip/internal/render"
	"streetclip/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var contentTypes = map[models.OutputFormat]string{
	models.FormatHTML:    "text/html; charset=utf-8",
	models.FormatSVG:     "image/svg+xml",
	models.FormatGeoJSON: "application/geo+json",
}

// ExtractHandler renders the streets around an address
type ExtractHandler struct {
	service ExtractService
}

// ExtractService interface for dependency injection
type ExtractService interface {
	Build(ctx context.Context, req models.ExtractRequest) (*service.Result, error)
}

// NewExtractHandler creates a new extract handler
func NewExtractHandler(svc ExtractService) *ExtractHandler {
	return &ExtractHandler{service: svc}
}

// Extract handles POST /extract requests. The rendered document is the
// response body.
func (h *ExtractHandler) Extract(c *gin.Context) {
	var req models.ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.Format == "" {
		req.Format = models.FormatHTML
	}
	format, err := models.ParseOutputFormat(string(req.Format))
	if _, ok := contentTypes[format]; err != nil || !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be one of html, svg, geojson"})
		return
	}
	req.Format = format
	if len(req.Kinds) == 0 {
		req.Kinds = []models.DataKind{models.KindCenterline}
	}
	for i, raw := range req.Kinds {
		k, err := models.ParseDataKind(string(raw))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.Kinds[i] = k
	}

	res, err := h.service.Build(c.Request.Context(), req)
	if err != nil {
		status, msg := extractStatus(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Str("address", req.Address).Msg("extraction failed")
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}
	total := 0
	for _, n := range res.Counts {
		total += n
	}
	if len(res.Documents) == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "no document rendered"})
		return
	}

	doc := res.Documents[0]
	c.Header("X-Feature-Count", strconv.Itoa(total))
	c.Header("X-Address", res.Address.DisplayName)
	if len(res.Warnings) > 0 {
		c.Header("Warning", `199 streetclip "`+strings.Join(res.Warnings, "; ")+`"`)
	}
	c.Data(http.StatusOK, contentTypes[doc.Format], doc.Body.Bytes())
}

func extractStatus(err error) (int, string) {
	var (
		radiusErr *geometry.InvalidRadiusError
		inputErr  *service.InputError
		geoErr    *geocode.GeocodeError
		renderErr *render.RenderError
		loadErr   *dataset.DatasetLoadError
	)
	switch {
	case errors.As(err, &radiusErr):
		return http.StatusBadRequest, radiusErr.Error()
	case errors.As(err, &inputErr):
		return http.StatusBadRequest, inputErr.Error()
	case errors.As(err, &geoErr):
		return http.StatusNotFound, "address could not be resolved"
	case errors.As(err, &renderErr):
		return http.StatusUnprocessableEntity, renderErr.Error()
	case errors.As(err, &loadErr):
		return http.StatusInternalServerError, "street layer unavailable"
	}
	return http.StatusInternalServerError, "internal server error"
}
