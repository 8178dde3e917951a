package main

import (
	"context"
	"net/http"
	"time"

	"streetclip/internal/cache"
	"streetclip/internal/config"
	"streetclip/internal/dataset"
	"streetclip/internal/geocode"
	"streetclip/internal/handler"
	"streetclip/internal/logging"
	"streetclip/internal/metrics"
	"streetclip/internal/models"
	"streetclip/internal/render"
	"streetclip/internal/repository"
	"streetclip/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

func main() {
	config, err := config.LoadConfig("./configs", nil)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}
	logging.Setup(config.Log.Level, config.Log.Format)

	// Database connection
	conn, err := pgxpool.New(context.Background(), config.DBSource)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot connect to db")
	}
	defer conn.Close()

	go func() {
		for range time.Tick(15 * time.Second) {
			metrics.UpdateDBPoolMetrics(conn.Stat())
		}
	}()

	// Initialize layers
	repo := repository.NewRepository(conn)

	var geocoder geocode.Provider = geocode.Chain{
		geocode.NewLocal(repo),
		geocode.NewRetrying(
			geocode.NewNominatim(config.Geocoder.NominatimURL, config.Geocoder.UserAgent, config.Geocoder.Timeout),
			config.Geocoder.MaxAttempts,
			config.Geocoder.InitialBackoff,
		),
	}
	if config.Cache.Addr != "" {
		c, err := cache.New(config.Cache.Addr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", config.Cache.Addr).Msg("cannot connect to cache")
		}
		defer c.Close()
		geocoder = geocode.NewCached(geocoder, c, config.Cache.TTL)
	}

	geoCodeService := service.NewGeoCodeService(geocoder)
	reverseGeocodeService := service.NewReverseGeoCodeService(repo)
	extractService := service.NewExtractService(
		geocoder,
		layerSource(config, repo),
		render.NewMapRenderer(render.DefaultZoom),
		render.NewVectorRenderer(render.VectorOptions{
			Size:       config.Render.CanvasSize,
			Margin:     config.Render.Margin,
			Separation: render.DefaultVectorOptions().Separation,
		}),
		service.ExtractOptions{Segments: config.Render.Segments},
	)

	geoCodeHandler := handler.NewGeoCodeHandler(geoCodeService)
	reverseGeocodeHandler := handler.NewReverseGeocodeHandler(reverseGeocodeService)
	extractHandler := handler.NewExtractHandler(extractService)

	r := gin.Default()
	r.Use(metrics.Middleware())

	r.GET("/health", func(c *gin.Context) {
		if err := conn.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	r.GET("/geocode", geoCodeHandler.GeoCode)
	r.GET("/reverse-geocode", reverseGeocodeHandler.ReverseGeocode)
	r.POST("/extract", extractHandler.Extract)
	r.GET("/metrics", metrics.Handler())

	log.Info().Str("addr", config.ServerAddress).Msg("listening")
	if err := r.Run(config.ServerAddress); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// layerSource keeps every readable dataset file in memory behind an R-tree.
// Kinds whose file cannot be loaded are read from PostGIS instead.
func layerSource(cfg *config.Config, repo *repository.Repository) service.LayerSource {
	loaded := service.IndexSource{}
	for _, kind := range []models.DataKind{models.KindCenterline, models.KindSidewalk} {
		ds := cfg.Datasets.For(kind)
		r, err := dataset.Open(ds.Path, ds.EPSG)
		if err != nil {
			log.Warn().Err(err).Str("kind", string(kind)).Msg("dataset not loaded, using postgis")
			continue
		}
		idx, err := dataset.BuildIndex(r)
		r.Close()
		if err != nil {
			log.Warn().Err(err).Str("kind", string(kind)).Msg("dataset not indexed, using postgis")
			continue
		}
		log.Info().Str("kind", string(kind)).Int("features", idx.Len()).Msg("dataset indexed")
		loaded[kind] = idx
	}
	return service.MixedSource{Primary: loaded, Fallback: service.NewPostGISSource(repo)}
}
