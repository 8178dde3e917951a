package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"streetclip/internal/cache"
	"streetclip/internal/config"
	"streetclip/internal/geocode"
	"streetclip/internal/logging"
	"streetclip/internal/models"
	"streetclip/internal/prompt"
	"streetclip/internal/render"
	"streetclip/internal/service"

	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

type options struct {
	address string
	radius  float64
	kind    string
	format  string
	out     string
	config  string
}

func main() {
	fs := pflag.NewFlagSet("streetclip", pflag.ExitOnError)
	var opts options
	fs.StringVar(&opts.address, "address", "", "address to search around; prompts interactively when empty")
	fs.Float64Var(&opts.radius, "radius", 0.5, "search radius in miles")
	fs.StringVar(&opts.kind, "kind", "centerline", "data kind: centerline, sidewalk or a comma separated list")
	fs.StringVar(&opts.format, "format", "html", "output format: html, svg or both")
	fs.StringVar(&opts.out, "out", "", "export file base name, file or directory")
	fs.StringVar(&opts.config, "config", "./configs", "config directory or yaml file")
	fs.String("log-level", "info", "log level")
	fs.String("log-format", "console", "log format: console or json")
	fs.String("centerline", "", "centerline dataset path")
	fs.String("sidewalk", "", "sidewalk dataset path")
	fs.String("out-dir", "", "directory for default output names")
	fs.Bool("open", false, "open the HTML map in a browser when done")
	fs.String("nominatim", "", "Nominatim base URL")
	fs.Parse(os.Args[1:])

	cfg, err := config.LoadConfig(opts.config, fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	geocoder, closeCache := newGeocoder(cfg)
	defer closeCache()

	svc := service.NewExtractService(
		geocoder,
		service.NewFileSource(cfg.Datasets),
		render.NewMapRenderer(render.DefaultZoom),
		render.NewVectorRenderer(render.VectorOptions{
			Size:       cfg.Render.CanvasSize,
			Margin:     cfg.Render.Margin,
			Separation: render.DefaultVectorOptions().Separation,
		}),
		service.ExtractOptions{OutputDir: cfg.Output.Dir, Segments: cfg.Render.Segments},
	)

	if opts.address == "" {
		interactive(ctx, svc, cfg)
		return
	}

	req, err := opts.request()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}
	if err := extract(ctx, svc, cfg, req, os.Stdout); err != nil {
		os.Exit(1)
	}
}

// newGeocoder wraps Nominatim in retries and, when configured, a valkey cache.
func newGeocoder(cfg *config.Config) (geocode.Provider, func()) {
	var p geocode.Provider = geocode.NewRetrying(
		geocode.NewNominatim(cfg.Geocoder.NominatimURL, cfg.Geocoder.UserAgent, cfg.Geocoder.Timeout),
		cfg.Geocoder.MaxAttempts,
		cfg.Geocoder.InitialBackoff,
	)
	if cfg.Cache.Addr == "" {
		return p, func() {}
	}

	c, err := cache.New(cfg.Cache.Addr)
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.Cache.Addr).Msg("geocode cache unavailable")
		return p, func() {}
	}
	return geocode.NewCached(p, c, cfg.Cache.TTL), c.Close
}

func (o options) request() (models.ExtractRequest, error) {
	kinds, err := models.ParseDataKinds(o.kind)
	if err != nil {
		return models.ExtractRequest{}, err
	}
	format, err := models.ParseOutputFormat(o.format)
	if err != nil {
		return models.ExtractRequest{}, err
	}
	if !format.WantsMap() && !format.WantsVector() {
		return models.ExtractRequest{}, fmt.Errorf("output format %q is not written to disk, use html, svg or both", o.format)
	}
	return models.ExtractRequest{
		Address:     o.address,
		RadiusMiles: o.radius,
		Kinds:       kinds,
		Format:      format,
		ExportPath:  o.out,
	}, nil
}

func interactive(ctx context.Context, svc *service.ExtractService, cfg *config.Config) {
	session, line := prompt.Terminal(os.Stdout)
	defer line.Close()

	for ctx.Err() == nil {
		req, err := session.Request()
		if err != nil {
			if !errors.Is(err, prompt.ErrAborted) {
				log.Error().Err(err).Msg("cannot read input")
			}
			return
		}

		question := "Do you want to search another location?"
		if err := extract(ctx, svc, cfg, req, os.Stdout); err != nil {
			question = "Do you want to try again?"
		}
		again, err := session.Confirm(question)
		if err != nil || !again {
			return
		}
	}
}

func extract(ctx context.Context, svc *service.ExtractService, cfg *config.Config, req models.ExtractRequest, out io.Writer) error {
	res, err := svc.Run(ctx, req)
	report(out, res, err)
	if err != nil {
		return err
	}

	if cfg.Output.OpenBrowser {
		for _, p := range res.Outputs {
			if strings.EqualFold(filepath.Ext(p), ".html") {
				if err := browser.OpenFile(p); err != nil {
					log.Warn().Err(err).Str("path", p).Msg("cannot open browser")
				}
			}
		}
	}
	return nil
}

func report(w io.Writer, res *service.Result, err error) {
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}

	fmt.Fprintf(w, "Location: %s (%.6f, %.6f)\n", res.Address.DisplayName, res.Address.Latitude, res.Address.Longitude)
	for _, l := range res.Layers {
		fmt.Fprintf(w, "Extracted %d %s features\n", res.Counts[l.Kind], l.Kind)
	}
	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}
	for _, p := range res.Outputs {
		switch strings.ToLower(filepath.Ext(p)) {
		case ".html":
			fmt.Fprintf(w, "HTML map saved: %s\n", p)
		case ".svg":
			fmt.Fprintf(w, "SVG file saved: %s\n", p)
		default:
			fmt.Fprintf(w, "Saved: %s\n", p)
		}
	}
}
