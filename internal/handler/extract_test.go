package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"streetclip/internal/dataset"
	"streetclip/internal/geocode"
	"streetclip/internal/geometry"
	"streetclip/internal/models"
	"streetclip/internal/render"
	"streetclip/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockExtractService struct {
	mock.Mock
}

func (m *MockExtractService) Build(ctx context.Context, req models.ExtractRequest) (*service.Result, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*service.Result)
	return res, args.Error(1)
}

func postExtract(h *ExtractHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	h.Extract(c)
	return w
}

func TestExtractHandler_Document(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name        string
		body        string
		format      models.OutputFormat
		kinds       []models.DataKind
		contentType string
	}{
		{
			name:        "default html",
			body:        `{"address": "350 5th Ave", "radius_miles": 0.25}`,
			format:      models.FormatHTML,
			kinds:       []models.DataKind{models.KindCenterline},
			contentType: "text/html; charset=utf-8",
		},
		{
			name:        "svg sidewalks",
			body:        `{"address": "350 5th Ave", "radius_miles": 0.25, "kinds": ["sidewalk"], "format": "svg"}`,
			format:      models.FormatSVG,
			kinds:       []models.DataKind{models.KindSidewalk},
			contentType: "image/svg+xml",
		},
		{
			name:        "aliases normalised",
			body:        `{"address": "350 5th Ave", "radius_miles": 0.25, "kinds": ["pedestrian"], "format": "vector"}`,
			format:      models.FormatSVG,
			kinds:       []models.DataKind{models.KindSidewalk},
			contentType: "image/svg+xml",
		},
		{
			name:        "geojson",
			body:        `{"address": "350 5th Ave", "radius_miles": 0.25, "format": "geojson"}`,
			format:      models.FormatGeoJSON,
			kinds:       []models.DataKind{models.KindCenterline},
			contentType: "application/geo+json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(MockExtractService)
			want := models.ExtractRequest{Address: "350 5th Ave", RadiusMiles: 0.25, Kinds: tt.kinds, Format: tt.format}
			mockSvc.On("Build", mock.Anything, want).Return(&service.Result{
				Address:   models.AddressPoint{DisplayName: "Empire State Building"},
				Counts:    map[models.DataKind]int{tt.kinds[0]: 12},
				Documents: []service.Document{{Format: tt.format, Body: bytes.NewBufferString("<doc/>")}},
			}, nil)

			w := postExtract(NewExtractHandler(mockSvc), tt.body)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.contentType, w.Header().Get("Content-Type"))
			assert.Equal(t, "12", w.Header().Get("X-Feature-Count"))
			assert.Equal(t, "Empire State Building", w.Header().Get("X-Address"))
			assert.Equal(t, "<doc/>", w.Body.String())
			mockSvc.AssertExpectations(t)
		})
	}
}

func TestExtractHandler_Errors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	body := `{"address": "350 5th Ave", "radius_miles": 0.25}`
	tests := []struct {
		name           string
		body           string
		mockError      error
		expectedStatus int
	}{
		{name: "malformed body", body: `{"address": `, expectedStatus: http.StatusBadRequest},
		{name: "missing address", body: `{"radius_miles": 1}`, expectedStatus: http.StatusBadRequest},
		{name: "both formats", body: `{"address": "a", "radius_miles": 1, "format": "both"}`, expectedStatus: http.StatusBadRequest},
		{name: "both formats by number", body: `{"address": "a", "radius_miles": 1, "format": "3"}`, expectedStatus: http.StatusBadRequest},
		{name: "unknown kind", body: `{"address": "a", "radius_miles": 1, "kinds": ["bike"]}`, expectedStatus: http.StatusBadRequest},
		{
			name:           "invalid radius",
			body:           body,
			mockError:      fmt.Errorf("collect_input: %w", &geometry.InvalidRadiusError{Radius: -1}),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid kind",
			body:           body,
			mockError:      fmt.Errorf("collect_input: %w", &service.InputError{Field: "kind", Reason: "unknown"}),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "address not found",
			body:           body,
			mockError:      fmt.Errorf("geocode: %w", &geocode.GeocodeError{Address: "350 5th Ave", Attempts: 3, Err: geocode.ErrNoMatch}),
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "degenerate drawing",
			body:           body,
			mockError:      fmt.Errorf("render: %w", &render.RenderError{Format: "svg", Reason: "features have zero width or height extent"}),
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "dataset missing",
			body:           body,
			mockError:      fmt.Errorf("clip: %w", &dataset.DatasetLoadError{Path: "data/Centerline.shp", Reason: "cannot open shapefile"}),
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "unexpected",
			body:           body,
			mockError:      assert.AnError,
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(MockExtractService)
			if tt.mockError != nil {
				mockSvc.On("Build", mock.Anything, mock.Anything).Return(&service.Result{}, tt.mockError)
			}

			w := postExtract(NewExtractHandler(mockSvc), tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code)
			var actual map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &actual))
			assert.NotEmpty(t, actual["error"])

			if tt.mockError != nil {
				mockSvc.AssertExpectations(t)
			} else {
				mockSvc.AssertNotCalled(t, "Build", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestExtractHandler_Warning(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockSvc := new(MockExtractService)
	mockSvc.On("Build", mock.Anything, mock.Anything).Return(&service.Result{
		Counts:    map[models.DataKind]int{},
		Documents: []service.Document{{Format: models.FormatHTML, Body: bytes.NewBufferString("<html></html>")}},
		Warnings:  []string{"vector output skipped: degenerate"},
	}, nil)

	w := postExtract(NewExtractHandler(mockSvc), `{"address": "a", "radius_miles": 1}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Warning"), "vector output skipped")
	assert.Equal(t, "0", w.Header().Get("X-Feature-Count"))
}
