package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"streetclip/internal/models"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir(), nil)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.Geocoder.NominatimURL)
	assert.Equal(t, 3, cfg.Geocoder.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Geocoder.Timeout)
	assert.Equal(t, 1000, cfg.Render.CanvasSize)
	assert.Equal(t, 40.0, cfg.Render.Margin)
	assert.Equal(t, "0.0.0.0:8080", cfg.ServerAddress)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	yaml := `
log:
  format: json
geocoder:
  timeout: 3s
  initial_backoff: 50ms
datasets:
  sidewalk:
    path: /data/sidewalks.geojson
    epsg: 2263
db_source: postgresql://u:p@db:5432/streetclip
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.yaml"), []byte(yaml), 0o644))

	cfg, err := LoadConfig(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 3*time.Second, cfg.Geocoder.Timeout)
	assert.Equal(t, 50*time.Millisecond, cfg.Geocoder.InitialBackoff)
	assert.Equal(t, DatasetConfig{Path: "/data/sidewalks.geojson", EPSG: 2263}, cfg.Datasets.For(models.KindSidewalk))
	assert.Equal(t, "data/Centerline.shp", cfg.Datasets.For(models.KindCenterline).Path)
	assert.Equal(t, "postgresql://u:p@db:5432/streetclip", cfg.DBSource)

	// Explicit file path.
	cfg, err = LoadConfig(filepath.Join(dir, "app.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_EnvAndFlags(t *testing.T) {
	t.Setenv("STREETCLIP_GEOCODER_USER_AGENT", "test-agent")
	t.Setenv("STREETCLIP_OUTPUT_DIR", "/tmp/out")

	fs := pflag.NewFlagSet("streetclip", pflag.ContinueOnError)
	fs.String("centerline", "", "")
	fs.String("out-dir", "", "")
	require.NoError(t, fs.Parse([]string{"--centerline", "/srv/lion.shp"}))

	cfg, err := LoadConfig(t.TempDir(), fs)
	require.NoError(t, err)
	assert.Equal(t, "test-agent", cfg.Geocoder.UserAgent)
	assert.Equal(t, "/srv/lion.shp", cfg.Datasets.Centerline.Path)
	// Unset flags do not shadow the environment.
	assert.Equal(t, "/tmp/out", cfg.Output.Dir)
}

func TestLoadConfig_BadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.yaml"), []byte("log: [unterminated"), 0o644))
	_, err := LoadConfig(dir, nil)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Log:      LogConfig{Level: "info", Format: "console"},
			Geocoder: GeocoderConfig{NominatimURL: "http://localhost:8088", UserAgent: "ua", Timeout: time.Second, MaxAttempts: 3},
			Render:   RenderConfig{CanvasSize: 1000, Margin: 40, Segments: 128},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format"},
		{name: "relative url", mutate: func(c *Config) { c.Geocoder.NominatimURL = "nominatim" }, wantErr: "geocoder.nominatim_url"},
		{name: "user agent", mutate: func(c *Config) { c.Geocoder.UserAgent = "" }, wantErr: "geocoder.user_agent"},
		{name: "attempts", mutate: func(c *Config) { c.Geocoder.MaxAttempts = 0 }, wantErr: "geocoder.max_attempts"},
		{name: "timeout", mutate: func(c *Config) { c.Geocoder.Timeout = 0 }, wantErr: "geocoder.timeout"},
		{name: "margin", mutate: func(c *Config) { c.Render.Margin = 500 }, wantErr: "render.margin"},
		{name: "segments", mutate: func(c *Config) { c.Render.Segments = 4 }, wantErr: "render.segments"},
		{name: "cache ttl", mutate: func(c *Config) { c.Cache.Addr = "localhost:6379" }, wantErr: "cache.ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
