package models

import "github.com/paulmach/orb"

// Location is a row of the local address table: a single addressable point
// with its decomposed components.
type Location struct {
	ID          int     `json:"id"`
	HouseNumber string  `json:"house_number"`
	Street      string  `json:"street"`
	Borough     string  `json:"borough"`
	Postcode    string  `json:"postcode"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// AddressPoint is the geocoded position of a free-text address query.
type AddressPoint struct {
	Query       string  `json:"query"`
	DisplayName string  `json:"display_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Provider    string  `json:"provider"`
}

// Point returns the address as an orb point in longitude/latitude order.
func (a AddressPoint) Point() orb.Point {
	return orb.Point{a.Longitude, a.Latitude}
}

// NearestAddress is the result of a reverse lookup: the closest imported
// address and how far it lies from the query point.
type NearestAddress struct {
	Location
	DistanceMeters float64 `json:"distance_meters"`
}
