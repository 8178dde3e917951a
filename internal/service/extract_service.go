package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"streetclip/internal/dataset"
	"streetclip/internal/geocode"
	"streetclip/internal/geometry"
	"streetclip/internal/metrics"
	"streetclip/internal/models"
	"streetclip/internal/projection"
	"streetclip/internal/render"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
)

// InputError reports a request field that cannot be used.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// MapRenderer draws the interactive map document.
type MapRenderer interface {
	Render(w io.Writer, v render.MapView) error
}

// VectorRenderer draws the fixed canvas document.
type VectorRenderer interface {
	Render(w io.Writer, layers []models.Layer) error
}

// ExtractOptions tune an ExtractService.
type ExtractOptions struct {
	// OutputDir receives documents when a request names no export path.
	OutputDir string
	// Segments is the vertex count of the buffer polygon.
	Segments int
}

// Document is one rendered output.
type Document struct {
	Format models.OutputFormat
	Path   string
	Body   *bytes.Buffer
}

// Result describes a finished or failed run.
type Result struct {
	Address   models.AddressPoint
	EPSG      int
	Buffer    *geometry.Buffer
	Layers    []models.Layer
	Counts    map[models.DataKind]int
	Stats     map[models.DataKind]dataset.ClipStats
	Documents []Document
	Outputs   []string
	Warnings  []string
	Trace     []Stage
}

// ExtractService runs address -> buffer -> clip -> render.
type ExtractService struct {
	geocoder geocode.Provider
	source   LayerSource
	clipper  *dataset.Clipper
	maps     MapRenderer
	vectors  VectorRenderer
	opts     ExtractOptions
}

func NewExtractService(geocoder geocode.Provider, source LayerSource, maps MapRenderer, vectors VectorRenderer, opts ExtractOptions) *ExtractService {
	if opts.Segments <= 0 {
		opts.Segments = geometry.DefaultSegments
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	return &ExtractService{
		geocoder: geocoder,
		source:   source,
		clipper:  dataset.NewClipper(opts.Segments),
		maps:     maps,
		vectors:  vectors,
		opts:     opts,
	}
}

// Run executes req and writes the rendered documents to disk. On failure no
// output file is left behind. The returned Result is never nil; its Trace
// ends in StageDone or StageError.
func (s *ExtractService) Run(ctx context.Context, req models.ExtractRequest) (*Result, error) {
	return s.execute(ctx, req, true)
}

// Build executes req but keeps the rendered documents in memory.
func (s *ExtractService) Build(ctx context.Context, req models.ExtractRequest) (*Result, error) {
	return s.execute(ctx, req, false)
}

func (s *ExtractService) execute(ctx context.Context, req models.ExtractRequest, write bool) (*Result, error) {
	res := &Result{
		Counts: map[models.DataKind]int{},
		Stats:  map[models.DataKind]dataset.ClipStats{},
	}

	var (
		radius float64
		docs   []Document
		err    error
		format = req.Format
	)
	stage := StageCollectInput
	for !stage.Terminal() {
		res.Trace = append(res.Trace, stage)

		switch stage {
		case StageCollectInput:
			radius, err = validateRequest(&req)
			format = req.Format
		case StageGeocode:
			res.Address, err = s.geocoder.Geocode(ctx, req.Address)
		case StageBuildBuffer:
			err = s.buildBuffer(res, radius)
		case StageClip:
			err = s.clip(ctx, res, req.Kinds)
		case StageRender:
			docs, err = s.render(res, req, format)
		}

		next, nextFormat := transition(stage, err, format)
		if next == StageDone && nextFormat != format {
			log.Warn().Err(err).Msg("vector drawing failed, keeping the map only")
			res.Warnings = append(res.Warnings, fmt.Sprintf("vector output skipped: %v", err))
			docs = keep(docs, nextFormat)
			metrics.VectorFallbacks.Inc()
		}
		if next == StageDone {
			res.Documents = docs
			if write {
				res.Outputs, err = writeDocuments(docs)
				if err != nil {
					next = StageError
				}
			}
		}
		log.Debug().Stringer("from", stage).Stringer("to", next).Msg("stage transition")

		if next == StageError {
			metrics.ExtractionsTotal.WithLabelValues(StageError.String()).Inc()
			res.Trace = append(res.Trace, StageError)
			return res, fmt.Errorf("%s: %w", stage, err)
		}
		stage, format = next, nextFormat
	}

	res.Trace = append(res.Trace, StageDone)
	metrics.ExtractionsTotal.WithLabelValues(StageDone.String()).Inc()
	return res, nil
}

func validateRequest(req *models.ExtractRequest) (float64, error) {
	req.Address = strings.TrimSpace(req.Address)
	if req.Address == "" {
		return 0, &InputError{Field: "address", Reason: "must not be empty"}
	}
	radius, err := geometry.MilesToMeters(req.RadiusMiles)
	if err != nil {
		return 0, err
	}
	if len(req.Kinds) == 0 {
		return 0, &InputError{Field: "kinds", Reason: "at least one data kind is required"}
	}
	seen := map[models.DataKind]bool{}
	var kinds []models.DataKind
	for _, raw := range req.Kinds {
		k, err := models.ParseDataKind(string(raw))
		if err != nil {
			return 0, &InputError{Field: "kinds", Reason: err.Error()}
		}
		if !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	req.Kinds = kinds

	if req.Format == "" {
		req.Format = models.FormatHTML
	}
	format, err := models.ParseOutputFormat(string(req.Format))
	if err != nil {
		return 0, &InputError{Field: "format", Reason: err.Error()}
	}
	req.Format = format
	return radius, nil
}

// buildBuffer projects the address into its UTM zone and builds the disk
// there, so the radius is measured in meters.
func (s *ExtractService) buildBuffer(res *Result, radius float64) error {
	utm := projection.UTMFor(res.Address.Longitude, res.Address.Latitude)
	x, y := utm.Forward(res.Address.Longitude, res.Address.Latitude)

	buf, err := geometry.NewBuffer(orb.Point{x, y}, radius)
	if err != nil {
		return err
	}
	res.EPSG = utm.EPSG()
	res.Buffer = buf
	return nil
}

func (s *ExtractService) clip(ctx context.Context, res *Result, kinds []models.DataKind) error {
	toGeo, err := projection.NewTransformer(res.EPSG, projection.WGS84)
	if err != nil {
		return err
	}
	near := toGeo.Bound(res.Buffer.Bound())

	for _, kind := range kinds {
		r, err := s.source.Open(ctx, kind, near)
		if err != nil {
			return err
		}
		clipped, err := s.clipper.Clip(ctx, r, res.Buffer, res.EPSG)
		r.Close()
		if err != nil {
			return fmt.Errorf("%s layer: %w", kind, err)
		}

		res.Layers = append(res.Layers, models.Layer{Kind: kind, EPSG: clipped.EPSG, Features: clipped.Features})
		res.Counts[kind] = len(clipped.Features.Features)
		res.Stats[kind] = clipped.Stats
		metrics.FeaturesExtracted.WithLabelValues(string(kind)).Add(float64(res.Counts[kind]))
		log.Info().
			Str("kind", string(kind)).
			Int("features", res.Counts[kind]).
			Msg("layer extracted")
	}
	return nil
}

// render produces every requested document in memory. On failure it
// returns the documents completed so far.
func (s *ExtractService) render(res *Result, req models.ExtractRequest, format models.OutputFormat) ([]Document, error) {
	htmlPath, svgPath := OutputPaths(req.ExportPath, s.opts.OutputDir, req.Kinds)

	var docs []Document
	if format.WantsMap() {
		var buf bytes.Buffer
		view := render.MapView{
			Address: res.Address,
			Radius:  res.Buffer.Polygon(s.opts.Segments),
			Layers:  res.Layers,
		}
		if err := s.maps.Render(&buf, view); err != nil {
			return docs, err
		}
		docs = append(docs, Document{Format: models.FormatHTML, Path: htmlPath, Body: &buf})
	}
	if format.WantsVector() {
		var buf bytes.Buffer
		if err := s.vectors.Render(&buf, res.Layers); err != nil {
			return docs, err
		}
		docs = append(docs, Document{Format: models.FormatSVG, Path: svgPath, Body: &buf})
	}
	if format == models.FormatGeoJSON {
		var buf bytes.Buffer
		if err := render.GeoJSON(&buf, res.Layers); err != nil {
			return docs, err
		}
		docs = append(docs, Document{Format: models.FormatGeoJSON, Body: &buf})
	}
	return docs, nil
}

func keep(docs []Document, format models.OutputFormat) []Document {
	var out []Document
	for _, d := range docs {
		if (d.Format == models.FormatHTML && format.WantsMap()) || (d.Format == models.FormatSVG && format.WantsVector()) {
			out = append(out, d)
		}
	}
	return out
}

// writeDocuments persists docs that have a path. A failed write removes the
// files already written.
func writeDocuments(docs []Document) ([]string, error) {
	var written []string
	for _, d := range docs {
		if d.Path == "" {
			continue
		}
		if err := render.WriteFile(d.Path, d.Body); err != nil {
			for _, p := range written {
				os.Remove(p)
			}
			return nil, err
		}
		written = append(written, d.Path)
	}
	return written, nil
}
