package models

// Direction is a compass direction from an origin to a destination.
type Direction int

// Compass directions. Unknown is reserved for inputs the bearing cannot be computed from (NaN).
const (
	DirectionUnknown Direction = iota
	North
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest
	Near
)

var directionNames = map[Direction]string{
	DirectionUnknown: "unknown",
	North:            "N",
	NorthEast:        "NE",
	East:             "E",
	SouthEast:        "SE",
	South:            "S",
	SouthWest:        "SW",
	West:             "W",
	NorthWest:        "NW",
	Near:             "near",
}

func (d Direction) String() string {
	if name, ok := directionNames[d]; ok {
		return name
	}
	return directionNames[DirectionUnknown]
}
