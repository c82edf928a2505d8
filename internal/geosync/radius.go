package geosync

import "math"

// Radius bounds in meters. The ceiling corresponds to the widest zoom the
// upstream spatial index answers sensibly; the floor avoids degenerate
// sub-10m queries from deep zoom-ins.
const (
	MinRadiusMeters = 10.0
	MaxRadiusMeters = 156000.0
)

// Calibration constants: at zoom 13 the visible region matches a level-13
// index cell, whose characteristic diameter is 1220m (radius 610m).
const (
	baseZoom   = 13.0
	baseRadius = 610.0
)

// RadiusForZoom maps a map zoom level to a search radius in meters.
// Each zoom step halves or doubles the radius; the result is clamped to
// [MinRadiusMeters, MaxRadiusMeters].
func RadiusForZoom(zoom float64) float64 {
	r := baseRadius * math.Pow(2, baseZoom-zoom)
	if r < MinRadiusMeters {
		return MinRadiusMeters
	}
	if r > MaxRadiusMeters {
		return MaxRadiusMeters
	}
	return r
}
