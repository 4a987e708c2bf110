package models

// Reason tells why an enrichment field holds no real value.
type Reason int

const (
	ReasonNone              Reason = iota // The field holds a real value.
	ReasonNoAddress                       // The order had no address; nothing was resolved.
	ReasonAddressUnresolved               // The destination address could not be geocoded.
	ReasonUnknown                         // The route could not be computed.
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "ok"
	case ReasonNoAddress:
		return "no_address"
	case ReasonAddressUnresolved:
		return "address_unresolved"
	case ReasonUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Enrichment holds the route and bearing data computed for one order.
// DistanceKm and ETAMinutes are meaningful only when RouteReason is ReasonNone,
// Bearing only when BearingReason is ReasonNone.
type Enrichment struct {
	DistanceKm    float64
	ETAMinutes    int
	Bearing       Direction
	RouteReason   Reason
	BearingReason Reason
}

// Order is a delivery order. Fields carries every input attribute untouched
// (including id and address) so it can be echoed back to the caller.
type Order struct {
	ID         string
	Address    string
	Fields     map[string]any
	Enrichment Enrichment
}

// Degrade marks all three enrichment fields with the same reason.
func (e *Enrichment) Degrade(reason Reason) {
	e.DistanceKm, e.ETAMinutes, e.Bearing = 0, 0, DirectionUnknown
	e.RouteReason, e.BearingReason = reason, reason
}
