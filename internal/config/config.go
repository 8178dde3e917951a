package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"streetclip/internal/models"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	DBSource      string `mapstructure:"db_source"`
	ServerAddress string `mapstructure:"server_address"`

	Log      LogConfig      `mapstructure:"log"`
	Geocoder GeocoderConfig `mapstructure:"geocoder"`
	Datasets DatasetsConfig `mapstructure:"datasets"`
	Output   OutputConfig   `mapstructure:"output"`
	Render   RenderConfig   `mapstructure:"render"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type GeocoderConfig struct {
	NominatimURL   string        `mapstructure:"nominatim_url"`
	UserAgent      string        `mapstructure:"user_agent"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
}

// DatasetConfig locates one street layer. EPSG overrides the CRS found in
// the file when non-zero.
type DatasetConfig struct {
	Path string `mapstructure:"path"`
	EPSG int    `mapstructure:"epsg"`
}

type DatasetsConfig struct {
	Centerline DatasetConfig `mapstructure:"centerline"`
	Sidewalk   DatasetConfig `mapstructure:"sidewalk"`
}

// For returns the dataset configured for kind.
func (d DatasetsConfig) For(kind models.DataKind) DatasetConfig {
	if kind.Pedestrian() {
		return d.Sidewalk
	}
	return d.Centerline
}

type OutputConfig struct {
	Dir         string `mapstructure:"dir"`
	OpenBrowser bool   `mapstructure:"open_browser"`
}

type RenderConfig struct {
	// CanvasSize is the side of the square SVG canvas. Drawings are
	// 1000x1000 unless an operator overrides it.
	CanvasSize int     `mapstructure:"canvas_size"`
	Margin     float64 `mapstructure:"margin"`
	Segments   int     `mapstructure:"segments"`
}

type CacheConfig struct {
	Addr string        `mapstructure:"addr"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
	"centerline": "datasets.centerline.path",
	"sidewalk":   "datasets.sidewalk.path",
	"out-dir":    "output.dir",
	"open":       "output.open_browser",
	"nominatim":  "geocoder.nominatim_url",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_source", "")
	v.SetDefault("server_address", "0.0.0.0:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("geocoder.nominatim_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.user_agent", "streetclip/1.0")
	v.SetDefault("geocoder.timeout", 10*time.Second)
	v.SetDefault("geocoder.max_attempts", 3)
	v.SetDefault("geocoder.initial_backoff", 500*time.Millisecond)
	v.SetDefault("datasets.centerline.path", "data/Centerline.shp")
	v.SetDefault("datasets.centerline.epsg", 0)
	v.SetDefault("datasets.sidewalk.path", "data/Sidewalk.shp")
	v.SetDefault("datasets.sidewalk.epsg", 0)
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.open_browser", false)
	v.SetDefault("render.canvas_size", 1000)
	v.SetDefault("render.margin", 40.0)
	v.SetDefault("render.segments", 128)
	v.SetDefault("cache.addr", "")
	v.SetDefault("cache.ttl", 24*time.Hour)
}

// LoadConfig reads app.yaml from path (a directory or a file), then
// environment variables prefixed STREETCLIP_, then any flags in fs that map
// onto configuration keys. A missing config file is not an error.
func LoadConfig(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("app")
		v.SetConfigType("yaml")
		v.AddConfigPath(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// STREETCLIP_GEOCODER_USER_AGENT -> geocoder.user_agent
	v.SetEnvPrefix("STREETCLIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Output.Dir = filepath.Clean(cfg.Output.Dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be console or json, got %q", c.Log.Format))
	}
	if u, err := url.Parse(c.Geocoder.NominatimURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("geocoder.nominatim_url must be an absolute URL, got %q", c.Geocoder.NominatimURL))
	}
	if c.Geocoder.UserAgent == "" {
		errs = append(errs, "geocoder.user_agent is required")
	}
	if c.Geocoder.Timeout <= 0 {
		errs = append(errs, "geocoder.timeout must be positive")
	}
	if c.Geocoder.MaxAttempts < 1 {
		errs = append(errs, fmt.Sprintf("geocoder.max_attempts must be at least 1, got %d", c.Geocoder.MaxAttempts))
	}
	if c.Geocoder.InitialBackoff < 0 {
		errs = append(errs, "geocoder.initial_backoff must not be negative")
	}
	if c.Render.CanvasSize <= 0 {
		errs = append(errs, fmt.Sprintf("render.canvas_size must be positive, got %d", c.Render.CanvasSize))
	}
	if c.Render.Margin < 0 || 2*c.Render.Margin >= float64(c.Render.CanvasSize) {
		errs = append(errs, fmt.Sprintf("render.margin must leave room on a %d canvas, got %v", c.Render.CanvasSize, c.Render.Margin))
	}
	if c.Render.Segments < 8 {
		errs = append(errs, fmt.Sprintf("render.segments must be at least 8, got %d", c.Render.Segments))
	}
	if c.Cache.Addr != "" && c.Cache.TTL <= 0 {
		errs = append(errs, "cache.ttl must be positive when cache.addr is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
