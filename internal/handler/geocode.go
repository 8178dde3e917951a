package handler

import (
	"context"
	"errors"
	"net/http"

	"streetclip/internal/geocode"
	"streetclip/internal/models"
	"streetclip/internal/service"

	"github.com/gin-gonic/gin"
)

// GeoCodeHandler handles geocoding requests
type GeoCodeHandler struct {
	service GeoCodeService
}

// GeoCodeService interface for dependency injection
type GeoCodeService interface {
	Geocode(context.Context, string) (*models.AddressPoint, error)
}

// NewGeoCodeHandler creates a new geocode handler
func NewGeoCodeHandler(svc GeoCodeService) *GeoCodeHandler {
	return &GeoCodeHandler{service: svc}
}

// GeoCode handles GET /geocode requests
func (h *GeoCodeHandler) GeoCode(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required query parameter 'q'"})
		return
	}

	point, err := h.service.Geocode(c.Request.Context(), query)
	if err != nil {
		if errors.Is(err, service.ErrEmptyAddress) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "address cannot be empty"})
			return
		}
		var gerr *geocode.GeocodeError
		if errors.As(err, &gerr) {
			c.JSON(http.StatusNotFound, gin.H{"error": "address could not be resolved"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, point)
}
