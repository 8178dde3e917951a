package service

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"streetclip/internal/dataset"
	"streetclip/internal/geocode"
	"streetclip/internal/geometry"
	"streetclip/internal/models"
	"streetclip/internal/render"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// layerSource serves fixed WGS84 layers.
type layerSource struct {
	layers map[models.DataKind][]*geojson.Feature
	err    error
	opened []models.DataKind
}

func (s *layerSource) Open(_ context.Context, kind models.DataKind, near orb.Bound) (dataset.Reader, error) {
	s.opened = append(s.opened, kind)
	if s.err != nil {
		return nil, s.err
	}
	return dataset.NewSliceReader(4326, s.layers[kind]), nil
}

func manhattan() map[models.DataKind][]*geojson.Feature {
	w34 := geojson.NewFeature(orb.LineString{{-73.9950, 40.7484}, {-73.9760, 40.7484}})
	w34.Properties["street"] = "W 34 STREET"
	fifth := geojson.NewFeature(orb.LineString{{-73.9900, 40.7425}, {-73.9810, 40.7545}})
	fifth.Properties["street"] = "5 AVENUE"
	brooklyn := geojson.NewFeature(orb.LineString{{-73.9700, 40.6700}, {-73.9690, 40.6710}})
	broken := geojson.NewFeature(orb.LineString{{-73.9857, 40.7484}})

	block := func(lon, lat float64) *geojson.Feature {
		d := 0.0004
		return geojson.NewFeature(orb.Polygon{
			{{lon, lat}, {lon + d, lat}, {lon + d, lat + d}, {lon, lat + d}, {lon, lat}},
			{{lon + d/4, lat + d/4}, {lon + d/4, lat + d/2}, {lon + d/2, lat + d/2}, {lon + d/4, lat + d/4}},
		})
	}

	return map[models.DataKind][]*geojson.Feature{
		models.KindCenterline: {w34, fifth, brooklyn, broken},
		models.KindSidewalk:   {block(-73.9870, 40.7470), block(-73.9850, 40.7490), block(-73.9700, 40.6700)},
	}
}

func newExtractService(t *testing.T, provider geocode.Provider, src LayerSource) (*ExtractService, string) {
	t.Helper()
	dir := t.TempDir()
	svc := NewExtractService(provider, src,
		render.NewMapRenderer(render.DefaultZoom),
		render.NewVectorRenderer(render.DefaultVectorOptions()),
		ExtractOptions{OutputDir: dir, Segments: geometry.DefaultSegments},
	)
	return svc, dir
}

func esbProvider() *MockProvider {
	p := new(MockProvider)
	p.On("Geocode", mock.Anything, "350 5th Ave, New York, NY 10118").Return(esbPoint, nil)
	return p
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func allPoints(g orb.Geometry) []orb.Point {
	var out []orb.Point
	switch g := g.(type) {
	case orb.Point:
		out = append(out, g)
	case orb.LineString:
		out = append(out, g...)
	case orb.MultiLineString:
		for _, ls := range g {
			out = append(out, ls...)
		}
	case orb.Polygon:
		for _, r := range g {
			out = append(out, r...)
		}
	case orb.MultiPolygon:
		for _, p := range g {
			out = append(out, allPoints(p)...)
		}
	}
	return out
}

func TestExtractService_Run_BothFormats(t *testing.T) {
	provider := esbProvider()
	svc, dir := newExtractService(t, provider, &layerSource{layers: manhattan()})

	res, err := svc.Run(context.Background(), models.ExtractRequest{
		Address:     "350 5th Ave, New York, NY 10118",
		RadiusMiles: 0.5,
		Kinds:       []models.DataKind{models.KindCenterline},
		Format:      models.FormatBoth,
	})
	require.NoError(t, err)

	assert.Equal(t, []Stage{StageCollectInput, StageGeocode, StageBuildBuffer, StageClip, StageRender, StageDone}, res.Trace)
	assert.Equal(t, 32618, res.EPSG)
	assert.Equal(t, 2, res.Counts[models.KindCenterline])
	assert.Equal(t, dataset.ClipStats{Read: 4, Invalid: 1, Outside: 1, Kept: 2}, res.Stats[models.KindCenterline])
	assert.Empty(t, res.Warnings)

	htmlPath := filepath.Join(dir, "centerline_map.html")
	svgPath := filepath.Join(dir, "centerline_map.svg")
	assert.Equal(t, []string{htmlPath, svgPath}, res.Outputs)

	html, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	svg, err := os.ReadFile(svgPath)
	require.NoError(t, err)

	// Both documents carry the same clipped features.
	assert.Equal(t, 2, strings.Count(string(html), `"type":"Feature"`))
	assert.Equal(t, 2, strings.Count(string(svg), "<path"))
	assert.Contains(t, string(svg), "stroke-width:1")

	// Every clipped coordinate lies within the radius.
	for _, l := range res.Layers {
		for _, f := range l.Features.Features {
			for _, p := range allPoints(f.Geometry) {
				assert.LessOrEqual(t, res.Buffer.Distance(p), res.Buffer.Radius*(1+1e-9))
			}
		}
	}
	assert.InDelta(t, 0.5*geometry.MetersPerMile, res.Buffer.Radius, 1e-9)
	provider.AssertExpectations(t)
}

func TestExtractService_Run_InvalidRadius(t *testing.T) {
	for _, radius := range []float64{0, -1} {
		provider := new(MockProvider)
		svc, dir := newExtractService(t, provider, &layerSource{layers: manhattan()})

		res, err := svc.Run(context.Background(), models.ExtractRequest{
			Address:     "350 5th Ave, New York, NY 10118",
			RadiusMiles: radius,
			Kinds:       []models.DataKind{models.KindCenterline},
			Format:      models.FormatBoth,
		})

		var rerr *geometry.InvalidRadiusError
		require.True(t, errors.As(err, &rerr), "radius %v: got %v", radius, err)
		assert.Equal(t, []Stage{StageCollectInput, StageError}, res.Trace)
		assert.Empty(t, listDir(t, dir))
		provider.AssertNotCalled(t, "Geocode", mock.Anything, mock.Anything)
	}
}

func TestExtractService_Run_DegenerateVectorFallsBackToMap(t *testing.T) {
	single := geojson.NewFeature(orb.Point{-73.9857, 40.7484})
	src := &layerSource{layers: map[models.DataKind][]*geojson.Feature{models.KindCenterline: {single}}}
	svc, dir := newExtractService(t, esbProvider(), src)

	res, err := svc.Run(context.Background(), models.ExtractRequest{
		Address:     "350 5th Ave, New York, NY 10118",
		RadiusMiles: 0.5,
		Kinds:       []models.DataKind{models.KindCenterline},
		Format:      models.FormatBoth,
	})
	require.NoError(t, err)

	assert.Equal(t, StageDone, res.Trace[len(res.Trace)-1])
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "vector output skipped")
	assert.Equal(t, []string{"centerline_map.html"}, listDir(t, dir))
	require.Len(t, res.Documents, 1)
	assert.Equal(t, models.FormatHTML, res.Documents[0].Format)
}

func TestExtractService_Run_DegenerateVectorOnly(t *testing.T) {
	single := geojson.NewFeature(orb.Point{-73.9857, 40.7484})
	src := &layerSource{layers: map[models.DataKind][]*geojson.Feature{models.KindCenterline: {single}}}
	svc, dir := newExtractService(t, esbProvider(), src)

	res, err := svc.Run(context.Background(), models.ExtractRequest{
		Address:     "350 5th Ave, New York, NY 10118",
		RadiusMiles: 0.5,
		Kinds:       []models.DataKind{models.KindCenterline},
		Format:      models.FormatSVG,
	})

	var rerr *render.RenderError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, StageError, res.Trace[len(res.Trace)-1])
	assert.Empty(t, listDir(t, dir))
}

func TestExtractService_Run_Sidewalks(t *testing.T) {
	svc, dir := newExtractService(t, esbProvider(), &layerSource{layers: manhattan()})

	res, err := svc.Run(context.Background(), models.ExtractRequest{
		Address:     "350 5th Ave, New York, NY 10118",
		RadiusMiles: 0.5,
		Kinds:       []models.DataKind{models.KindSidewalk},
		Format:      models.FormatSVG,
		ExportPath:  filepath.Join(t.TempDir(), "blocks.svg"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Counts[models.KindSidewalk])
	assert.Empty(t, listDir(t, dir))

	require.Len(t, res.Outputs, 1)
	svg, err := os.ReadFile(res.Outputs[0])
	require.NoError(t, err)
	doc := string(svg)

	// Two blocks with one hole each: only the exterior rings are drawn.
	assert.Equal(t, 2, strings.Count(doc, "<path"))
	assert.Equal(t, 2, strings.Count(doc, " Z"))
	assert.Contains(t, doc, "stroke-width:2")
	assert.NotContains(t, doc, "stroke-width:1")
}

func TestExtractService_Run_EmptyDataset(t *testing.T) {
	src := &layerSource{layers: map[models.DataKind][]*geojson.Feature{}}
	svc, dir := newExtractService(t, esbProvider(), src)

	res, err := svc.Run(context.Background(), models.ExtractRequest{
		Address:     "350 5th Ave, New York, NY 10118",
		RadiusMiles: 0.5,
		Kinds:       []models.DataKind{models.KindCenterline, models.KindSidewalk},
		Format:      models.FormatBoth,
	})
	require.NoError(t, err)
	assert.Zero(t, res.Counts[models.KindCenterline])
	assert.Zero(t, res.Counts[models.KindSidewalk])
	assert.ElementsMatch(t, []string{"centerline-sidewalk_map.html", "centerline-sidewalk_map.svg"}, listDir(t, dir))
	for _, d := range res.Documents {
		assert.NotZero(t, d.Body.Len())
	}
}

func TestExtractService_Run_Failures(t *testing.T) {
	tests := []struct {
		name     string
		provider func() *MockProvider
		src      *layerSource
		check    func(t *testing.T, err error)
		trace    []Stage
	}{
		{
			name: "geocode failure",
			provider: func() *MockProvider {
				p := new(MockProvider)
				p.On("Geocode", mock.Anything, mock.Anything).
					Return(models.AddressPoint{}, &geocode.GeocodeError{Address: "x", Attempts: 3, Err: assert.AnError})
				return p
			},
			src: &layerSource{layers: manhattan()},
			check: func(t *testing.T, err error) {
				var gerr *geocode.GeocodeError
				assert.True(t, errors.As(err, &gerr))
			},
			trace: []Stage{StageCollectInput, StageGeocode, StageError},
		},
		{
			name:     "dataset failure",
			provider: esbProvider,
			src:      &layerSource{err: &dataset.DatasetLoadError{Path: "missing.shp", Reason: "cannot access source"}},
			check: func(t *testing.T, err error) {
				var lerr *dataset.DatasetLoadError
				assert.True(t, errors.As(err, &lerr))
			},
			trace: []Stage{StageCollectInput, StageGeocode, StageBuildBuffer, StageClip, StageError},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, dir := newExtractService(t, tt.provider(), tt.src)
			res, err := svc.Run(context.Background(), models.ExtractRequest{
				Address:     "350 5th Ave, New York, NY 10118",
				RadiusMiles: 0.5,
				Kinds:       []models.DataKind{models.KindCenterline},
				Format:      models.FormatBoth,
			})
			require.Error(t, err)
			tt.check(t, err)
			assert.Equal(t, tt.trace, res.Trace)
			assert.Empty(t, listDir(t, dir))
		})
	}
}

func TestExtractService_Build_GeoJSON(t *testing.T) {
	svc, dir := newExtractService(t, esbProvider(), &layerSource{layers: manhattan()})

	res, err := svc.Build(context.Background(), models.ExtractRequest{
		Address:     "350 5th Ave, New York, NY 10118",
		RadiusMiles: 0.5,
		Kinds:       []models.DataKind{models.KindCenterline, models.KindCenterline},
		Format:      models.FormatGeoJSON,
	})
	require.NoError(t, err)
	assert.Empty(t, listDir(t, dir))
	assert.Empty(t, res.Outputs)
	require.Len(t, res.Documents, 1)

	fc, err := geojson.UnmarshalFeatureCollection(res.Documents[0].Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name       string
		req        models.ExtractRequest
		wantKinds  []models.DataKind
		wantFormat models.OutputFormat
		field      string
		wantErr    bool
	}{
		{
			name:       "defaults format",
			req:        models.ExtractRequest{Address: "a", RadiusMiles: 1, Kinds: []models.DataKind{"centerline"}},
			wantKinds:  []models.DataKind{models.KindCenterline},
			wantFormat: models.FormatHTML,
		},
		{
			name:       "kind aliases normalised and deduplicated",
			req:        models.ExtractRequest{Address: "a", RadiusMiles: 1, Kinds: []models.DataKind{"pedestrian", "2", "traffic", "1"}, Format: "3"},
			wantKinds:  []models.DataKind{models.KindSidewalk, models.KindCenterline},
			wantFormat: models.FormatBoth,
		},
		{
			name:       "format alias",
			req:        models.ExtractRequest{Address: "a", RadiusMiles: 1, Kinds: []models.DataKind{"SIDEWALK"}, Format: "vector"},
			wantKinds:  []models.DataKind{models.KindSidewalk},
			wantFormat: models.FormatSVG,
		},
		{name: "blank address", req: models.ExtractRequest{Address: "  ", RadiusMiles: 1, Kinds: []models.DataKind{"centerline"}}, field: "address", wantErr: true},
		{name: "no kinds", req: models.ExtractRequest{Address: "a", RadiusMiles: 1}, field: "kinds", wantErr: true},
		{name: "unknown kind", req: models.ExtractRequest{Address: "a", RadiusMiles: 1, Kinds: []models.DataKind{"bike"}}, field: "kinds", wantErr: true},
		{name: "unknown format", req: models.ExtractRequest{Address: "a", RadiusMiles: 1, Kinds: []models.DataKind{"sidewalk"}, Format: "pdf"}, field: "format", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := validateRequest(&req)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tt.wantKinds, req.Kinds)
				assert.Equal(t, tt.wantFormat, req.Format)
				return
			}
			var ierr *InputError
			require.True(t, errors.As(err, &ierr))
			assert.Equal(t, tt.field, ierr.Field)
		})
	}
}

func TestExtractService_Build_KindAlias(t *testing.T) {
	src := &layerSource{layers: manhattan()}
	svc, _ := newExtractService(t, esbProvider(), src)

	res, err := svc.Build(context.Background(), models.ExtractRequest{
		Address:     "350 5th Ave, New York, NY 10118",
		RadiusMiles: 0.5,
		Kinds:       []models.DataKind{"pedestrian"},
		Format:      "vector",
	})
	require.NoError(t, err)

	assert.Equal(t, []models.DataKind{models.KindSidewalk}, src.opened)
	require.Len(t, res.Layers, 1)
	assert.True(t, res.Layers[0].Kind.Pedestrian())
	require.Len(t, res.Documents, 1)
	assert.Equal(t, models.FormatSVG, res.Documents[0].Format)
	assert.Contains(t, res.Documents[0].Body.String(), "stroke-width:2")
}

func TestTransition(t *testing.T) {
	vectorErr := &render.RenderError{Format: "svg", Reason: "zero extent"}
	mapErr := &render.RenderError{Format: "html", Reason: "template"}

	tests := []struct {
		name       string
		from       Stage
		err        error
		format     models.OutputFormat
		wantStage  Stage
		wantFormat models.OutputFormat
	}{
		{name: "forward", from: StageGeocode, format: models.FormatBoth, wantStage: StageBuildBuffer, wantFormat: models.FormatBoth},
		{name: "render done", from: StageRender, format: models.FormatHTML, wantStage: StageDone, wantFormat: models.FormatHTML},
		{name: "failure", from: StageClip, err: assert.AnError, format: models.FormatBoth, wantStage: StageError, wantFormat: models.FormatBoth},
		{name: "vector fallback", from: StageRender, err: vectorErr, format: models.FormatBoth, wantStage: StageDone, wantFormat: models.FormatHTML},
		{name: "vector only", from: StageRender, err: vectorErr, format: models.FormatSVG, wantStage: StageError, wantFormat: models.FormatSVG},
		{name: "map failure", from: StageRender, err: mapErr, format: models.FormatBoth, wantStage: StageError, wantFormat: models.FormatBoth},
		{name: "terminal", from: StageDone, format: models.FormatHTML, wantStage: StageDone, wantFormat: models.FormatHTML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage, format := transition(tt.from, tt.err, tt.format)
			assert.Equal(t, tt.wantStage, stage)
			assert.Equal(t, tt.wantFormat, format)
		})
	}
}

func TestOutputPaths(t *testing.T) {
	dir := t.TempDir()
	kinds := []models.DataKind{models.KindCenterline}

	tests := []struct {
		name     string
		export   string
		kinds    []models.DataKind
		wantHTML string
		wantSVG  string
	}{
		{name: "default", export: "", kinds: kinds, wantHTML: filepath.Join("out", "centerline_map.html"), wantSVG: filepath.Join("out", "centerline_map.svg")},
		{name: "directory", export: dir, kinds: kinds, wantHTML: filepath.Join(dir, "centerline_map.html"), wantSVG: filepath.Join(dir, "centerline_map.svg")},
		{name: "html file", export: "maps/midtown.html", kinds: kinds, wantHTML: "maps/midtown.html", wantSVG: "maps/midtown.svg"},
		{name: "svg file", export: "midtown.SVG", kinds: kinds, wantHTML: "midtown.html", wantSVG: "midtown.SVG"},
		{name: "base name", export: "midtown", kinds: kinds, wantHTML: "midtown_map.html", wantSVG: "midtown_map.svg"},
		{
			name:     "several kinds",
			kinds:    []models.DataKind{models.KindCenterline, models.KindSidewalk},
			wantHTML: filepath.Join("out", "centerline-sidewalk_map.html"),
			wantSVG:  filepath.Join("out", "centerline-sidewalk_map.svg"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html, svg := OutputPaths(tt.export, "out", tt.kinds)
			assert.Equal(t, tt.wantHTML, html)
			assert.Equal(t, tt.wantSVG, svg)
		})
	}
}

func TestWriteDocuments_RemovesPartialOutput(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	docs := []Document{
		{Format: models.FormatHTML, Path: filepath.Join(dir, "ok.html"), Body: bytesBuffer("<html/>")},
		{Format: models.FormatSVG, Path: filepath.Join(blocker, "nested", "bad.svg"), Body: bytesBuffer("<svg/>")},
	}
	_, err := writeDocuments(docs)
	require.Error(t, err)
	assert.Equal(t, []string{"blocker"}, listDir(t, dir))
}

func TestIndexSource_Open(t *testing.T) {
	idx, err := dataset.BuildIndex(dataset.NewSliceReader(4326, manhattan()[models.KindCenterline]))
	require.NoError(t, err)
	src := IndexSource{models.KindCenterline: idx}

	near := orb.Bound{Min: orb.Point{-74.0, 40.74}, Max: orb.Point{-73.97, 40.76}}
	r, err := src.Open(context.Background(), models.KindCenterline, near)
	require.NoError(t, err)
	n := 0
	for {
		if _, err := r.Next(); err != nil {
			break
		}
		n++
	}
	assert.Equal(t, 2, n)

	_, err = src.Open(context.Background(), models.KindSidewalk, near)
	var lerr *dataset.DatasetLoadError
	assert.True(t, errors.As(err, &lerr))
}

func TestMixedSource_Open(t *testing.T) {
	idx, err := dataset.BuildIndex(dataset.NewSliceReader(4326, manhattan()[models.KindCenterline]))
	require.NoError(t, err)
	fallback := &layerSource{layers: manhattan()}
	src := MixedSource{Primary: IndexSource{models.KindCenterline: idx}, Fallback: fallback}

	near := orb.Bound{Min: orb.Point{-74.0, 40.74}, Max: orb.Point{-73.97, 40.76}}
	_, err = src.Open(context.Background(), models.KindCenterline, near)
	require.NoError(t, err)
	assert.Empty(t, fallback.opened)

	_, err = src.Open(context.Background(), models.KindSidewalk, near)
	require.NoError(t, err)
	assert.Equal(t, []models.DataKind{models.KindSidewalk}, fallback.opened)
}

func bytesBuffer(s string) *bytes.Buffer { return bytes.NewBufferString(s) }
