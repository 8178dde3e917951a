package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"streetclip/internal/config"
	"streetclip/internal/dataset"
	"streetclip/internal/logging"
	"streetclip/internal/models"
	"streetclip/internal/projection"
	"streetclip/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet("importer", pflag.ExitOnError)
	addresses := fs.String("addresses", "", "CSV file of address points to import")
	layer := fs.String("layer", "", "shapefile or GeoJSON street layer to import")
	kind := fs.String("kind", "centerline", "data kind of --layer: centerline or sidewalk")
	epsg := fs.Int("epsg", 0, "override the CRS declared by --layer")
	configPath := fs.String("config", "configs", "config directory or yaml file")
	fs.String("log-level", "info", "log level")
	fs.Parse(os.Args[1:])

	if *addresses == "" && *layer == "" {
		fmt.Fprintln(os.Stderr, "Error: --addresses or --layer is required")
		fs.Usage()
		os.Exit(1)
	}

	// Load config
	cfg, err := config.LoadConfig(*configPath, fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	// Connect to DB
	conn, err := pgx.Connect(ctx, cfg.DBSource)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot connect to db")
	}
	defer conn.Close(ctx)

	repo := repository.NewRepository(conn)

	// Ensure tables exist
	if err := repo.CreateSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("cannot create schema")
	}

	if *addresses != "" {
		if err := importAddresses(ctx, repo, *addresses); err != nil {
			log.Fatal().Err(err).Str("file", *addresses).Msg("address import failed")
		}
	}
	if *layer != "" {
		k, err := models.ParseDataKind(*kind)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid --kind")
		}
		if err := importLayer(ctx, repo, *layer, *epsg, k); err != nil {
			log.Fatal().Err(err).Str("file", *layer).Msg("layer import failed")
		}
	}
}

func importAddresses(ctx context.Context, repo *repository.Repository, path string) error {
	log.Info().Str("file", path).Msg("starting address import")

	records, err := parseCSV(path)
	if err != nil {
		return fmt.Errorf("parse csv: %w", err)
	}
	log.Info().Int("records", len(records)).Msg("parsed addresses")

	before, err := repo.CountLocations(ctx)
	if err != nil {
		return err
	}
	if _, err := repo.CopyLocations(ctx, records); err != nil {
		return err
	}

	// Verify data
	after, err := repo.CountLocations(ctx)
	if err != nil {
		return err
	}
	if after-before != int64(len(records)) {
		return fmt.Errorf("record count mismatch: expected %d, got %d", len(records), after-before)
	}
	if sample, err := repo.SampleGeometry(ctx, "addresses"); err == nil {
		log.Info().Str("geom", sample).Msg("sample address")
	}

	log.Info().Int("records", len(records)).Msg("address import complete")
	return nil
}

func importLayer(ctx context.Context, repo *repository.Repository, path string, epsg int, kind models.DataKind) error {
	log.Info().Str("file", path).Str("kind", string(kind)).Msg("starting layer import")

	r, err := dataset.Open(path, epsg)
	if err != nil {
		return err
	}
	defer r.Close()

	// street_features stores longitude/latitude.
	geo, err := dataset.Reproject(r, projection.WGS84)
	if err != nil {
		return err
	}

	before, err := repo.CountFeatures(ctx, kind)
	if err != nil {
		return err
	}
	n, err := repo.CopyFeatures(ctx, kind, geo)
	if err != nil {
		return err
	}

	after, err := repo.CountFeatures(ctx, kind)
	if err != nil {
		return err
	}
	if after-before != n {
		return fmt.Errorf("feature count mismatch: copied %d, table grew by %d", n, after-before)
	}

	log.Info().Int64("features", n).Str("kind", string(kind)).Msg("layer import complete")
	return nil
}

// columns of the address CSV, matched case-insensitively against the header.
var columns = map[string][]string{
	"house_number": {"house_number", "housenum", "house_num", "h_no"},
	"street":       {"street", "street_name", "full_stree", "st_name"},
	"borough":      {"borough", "boro", "boro_name"},
	"postcode":     {"postcode", "zipcode", "zip_code", "zip"},
	"latitude":     {"latitude", "lat"},
	"longitude":    {"longitude", "lon", "lng"},
}

func parseCSV(filePath string) ([]models.Location, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var records []models.Location
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}

		get := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		lat, err := strconv.ParseFloat(get("latitude"), 64)
		if err != nil || lat < -90 || lat > 90 {
			return nil, fmt.Errorf("line %d: invalid latitude %q", line, get("latitude"))
		}
		lon, err := strconv.ParseFloat(get("longitude"), 64)
		if err != nil || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("line %d: invalid longitude %q", line, get("longitude"))
		}

		records = append(records, models.Location{
			HouseNumber: get("house_number"),
			Street:      get("street"),
			Borough:     get("borough"),
			Postcode:    get("postcode"),
			Latitude:    lat,
			Longitude:   lon,
		})
	}

	return records, nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := map[string]int{}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
		for col, names := range columns {
			for _, name := range names {
				if h == name {
					if _, seen := idx[col]; !seen {
						idx[col] = i
					}
				}
			}
		}
	}

	for _, required := range []string{"street", "latitude", "longitude"} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("missing %s column in header", required)
		}
	}
	return idx, nil
}
