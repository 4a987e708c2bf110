// Package bearing computes the compass direction between two coordinates.
package bearing

import (
	"math"

	"github.com/UnknownOlympus/hermes/internal/models"
)

// NearThreshold is the per-axis degree delta under which two points count as the same place.
const NearThreshold = 1e-4

// sectors maps the lower bound of each 45° sector to its direction. Lower bounds are
// inclusive and upper bounds exclusive; angles below 22.5° or from 337.5° on are North.
var sectors = []struct {
	from float64
	dir  models.Direction
}{
	{22.5, models.NorthEast},
	{67.5, models.East},
	{112.5, models.SouthEast},
	{157.5, models.South},
	{202.5, models.SouthWest},
	{247.5, models.West},
	{292.5, models.NorthWest},
	{337.5, models.North},
}

// Calculate returns the compass direction from origin to dest.
//
// The angle is atan2(dLng, dLat): 0° points north and grows clockwise toward east,
// which makes it a compass bearing rather than a mathematical angle. Points closer
// than NearThreshold on both axes yield Near. NaN input yields DirectionUnknown.
func Calculate(origin, dest models.Coordinates) models.Direction {
	dLat := dest.Latitude - origin.Latitude
	dLng := dest.Longitude - origin.Longitude

	if math.Abs(dLat) < NearThreshold && math.Abs(dLng) < NearThreshold {
		return models.Near
	}

	return FromAngle(math.Atan2(dLng, dLat) * 180 / math.Pi)
}

// FromAngle maps a compass angle in degrees to one of the eight sectors.
func FromAngle(angle float64) models.Direction {
	angle = math.Mod(angle+360, 360)
	if math.IsNaN(angle) {
		return models.DirectionUnknown
	}

	dir := models.North
	for _, s := range sectors {
		if angle >= s.from {
			dir = s.dir
		}
	}
	return dir
}
