package domain

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Clamp limits latitude to [-90, 90] and longitude to [-180, 180].
func (p GeoPoint) Clamp() GeoPoint {
	return GeoPoint{
		Lat: clampFloat(p.Lat, -90, 90),
		Lon: clampFloat(p.Lon, -180, 180),
	}
}

// SearchRegion is a circular region representing the user's field of view.
type SearchRegion struct {
	Center       GeoPoint `json:"center"`
	RadiusMeters float64  `json:"radius_meters"`
}

// NewSearchRegion builds a region with the center and radius clamped to
// sane bounds.
func NewSearchRegion(lat, lon, radiusMeters float64) SearchRegion {
	return SearchRegion{
		Center:       GeoPoint{Lat: lat, Lon: lon}.Clamp(),
		RadiusMeters: clampFloat(radiusMeters, 0, 156000),
	}
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
