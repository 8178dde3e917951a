package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"streetclip/internal/models"
)

// ProviderNominatim names results that came from a Nominatim server.
const ProviderNominatim = "nominatim"

// Nominatim queries the OpenStreetMap Nominatim search API.
type Nominatim struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NewNominatim creates a client for the server at baseURL. Each request is
// bounded by timeout.
func NewNominatim(baseURL, userAgent string, timeout time.Duration) *Nominatim {
	return &Nominatim{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Geocode performs a single search request and returns the first result.
func (n *Nominatim) Geocode(ctx context.Context, address string) (models.AddressPoint, error) {
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return models.AddressPoint{}, fmt.Errorf("nominatim: create request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return models.AddressPoint{}, fmt.Errorf("nominatim: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return models.AddressPoint{}, &StatusError{StatusCode: resp.StatusCode}
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return models.AddressPoint{}, fmt.Errorf("nominatim: decode response: %w", err)
	}
	if len(places) == 0 {
		return models.AddressPoint{}, ErrNoMatch
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return models.AddressPoint{}, fmt.Errorf("nominatim: invalid latitude %q: %w", places[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return models.AddressPoint{}, fmt.Errorf("nominatim: invalid longitude %q: %w", places[0].Lon, err)
	}

	return models.AddressPoint{
		Query:       address,
		DisplayName: places[0].DisplayName,
		Latitude:    lat,
		Longitude:   lon,
		Provider:    ProviderNominatim,
	}, nil
}
