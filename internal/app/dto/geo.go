package dto

import "tradepost/internal/infra/geo"

// GeoPlace is one geocoding candidate passed through to the frontend.
type GeoPlace struct {
	DisplayName string  `json:"display_name"`
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	Class       string  `json:"class,omitempty"`
	Type        string  `json:"type,omitempty"`
	Importance  float64 `json:"importance,omitempty"`
}

type GeoResult struct {
	OK     bool       `json:"ok"`
	Places []GeoPlace `json:"places"`
}

func MapGeoPlaces(places []geo.Place) []GeoPlace {
	out := make([]GeoPlace, 0, len(places))
	for _, p := range places {
		out = append(out, GeoPlace(p))
	}
	return out
}
