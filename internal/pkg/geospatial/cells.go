package geospatial

import (
	"math"

	"github.com/golang/geo/s2"
)

// S2 levels used for spatial bucketing. The upstream places index resolves
// queries at cell granularity, so radii map onto cell diameters.
const (
	MinCellLevel = 10
	MaxCellLevel = 24
)

// cellDiameters maps an S2 level to the characteristic cell diameter in
// meters at mid latitudes.
var cellDiameters = map[int]float64{
	10: 9766.0,
	11: 4883.0,
	12: 2441.0,
	13: 1220.0,
	14: 610.0,
	15: 305.0,
	16: 153.0,
	17: 76.0,
	18: 38.0,
	19: 19.0,
	20: 9.5,
	21: 4.8,
	22: 2.4,
	23: 1.2,
	24: 0.6,
}

// CellDiameter returns the characteristic diameter in meters for a level.
func CellDiameter(level int) float64 {
	return cellDiameters[level]
}

// LevelForRadius returns the smallest level whose cell diameter still covers
// a circle of the given radius.
func LevelForRadius(radius float64) int {
	diameter := radius * 2

	lo, hi := MinCellLevel, MaxCellLevel
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if cellDiameters[mid] >= diameter {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// Cell wraps an S2 cell id with its token and center.
type Cell struct {
	ID    s2.CellID
	Token string
	Level int
	Lat   float64
	Lon   float64
}

func cellFromID(id s2.CellID) Cell {
	ll := id.LatLng()
	return Cell{
		ID:    id,
		Token: id.ToToken(),
		Level: id.Level(),
		Lat:   ll.Lat.Degrees(),
		Lon:   ll.Lng.Degrees(),
	}
}

// CellForRegion returns the cell containing the region center at the level
// matched to the region radius.
func CellForRegion(lat, lon, radius float64) Cell {
	level := LevelForRadius(radius)
	id := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon)).Parent(level)
	return cellFromID(id)
}

// Parent returns the cell one level up.
func (c Cell) Parent() Cell {
	return cellFromID(c.ID.Parent(c.Level - 1))
}

// Children returns the four child cells one level down.
func (c Cell) Children() []Cell {
	ids := c.ID.Children()
	children := make([]Cell, 0, 4)
	for _, id := range ids {
		children = append(children, cellFromID(id))
	}
	return children
}

// Neighbors returns the edge and corner neighbors at the cell's own level.
func (c Cell) Neighbors() []Cell {
	ids := c.ID.AllNeighbors(c.Level)
	neighbors := make([]Cell, 0, len(ids))
	for _, id := range ids {
		neighbors = append(neighbors, cellFromID(id))
	}
	return neighbors
}

// CellBounds is the approximate lat/lon box of a cell, derived from the
// level's characteristic diameter rather than the exact S2 geometry.
type CellBounds struct {
	MinLat, MinLon, MaxLat, MaxLon float64
}

// Bounds approximates the cell's bounding box.
func (c Cell) Bounds() CellBounds {
	halfSize := cellDiameters[c.Level] / 2
	// 111320 meters per degree of latitude
	dLat := halfSize / 111320
	dLon := halfSize / (111320 * math.Cos(toRad(c.Lat)))

	return CellBounds{
		MinLat: c.Lat - dLat,
		MinLon: c.Lon - dLon,
		MaxLat: c.Lat + dLat,
		MaxLon: c.Lon + dLon,
	}
}

// RegionIntersectsCell reports whether a circular region overlaps the cell's
// approximate bounds.
func RegionIntersectsCell(lat, lon, radius float64, cell Cell) bool {
	b := cell.Bounds()

	closestLat := clamp(lat, b.MinLat, b.MaxLat)
	closestLon := clamp(lon, b.MinLon, b.MaxLon)

	return Haversine(lat, lon, closestLat, closestLon) <= radius
}

// IntersectingCells returns the center cell plus every neighbor the region
// overlaps.
func IntersectingCells(lat, lon, radius float64, center Cell) []Cell {
	cells := []Cell{center}
	for _, n := range center.Neighbors() {
		if RegionIntersectsCell(lat, lon, radius, n) {
			cells = append(cells, n)
		}
	}
	return cells
}

// DistanceToNearestEdge returns the haversine distance in meters from a
// point to the nearest edge of the cell's bounds.
func DistanceToNearestEdge(lat, lon float64, cell Cell) float64 {
	b := cell.Bounds()

	top := Haversine(lat, lon, b.MaxLat, lon)
	bottom := Haversine(lat, lon, b.MinLat, lon)
	left := Haversine(lat, lon, lat, b.MinLon)
	right := Haversine(lat, lon, lat, b.MaxLon)

	return math.Min(math.Min(top, bottom), math.Min(left, right))
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
