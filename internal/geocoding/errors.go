package geocoding

import "errors"

var (
	errEmptyAddress    = errors.New("empty address")
	errNoResults       = errors.New("no results")
	errMissingLocation = errors.New("response has no location")
)
