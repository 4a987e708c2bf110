package models

import "math"

// Route is the first driving route a routing provider returned between two points.
type Route struct {
	DistanceMeters  float64 // Total driving distance in meters.
	DurationSeconds float64 // Estimated driving time in seconds.
}

// DistanceKm converts the route distance to kilometers.
func (r Route) DistanceKm() float64 {
	return r.DistanceMeters / 1000
}

// ETAMinutes rounds the duration up to whole minutes.
func (r Route) ETAMinutes() int {
	return int(math.Ceil(r.DurationSeconds / 60))
}
