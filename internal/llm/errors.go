package llm

import (
	"errors"

	"github.com/UnknownOlympus/hermes/internal/apierr"
)

var (
	errNoChoices   = errors.New("response has no choices")
	errNoText      = errors.New("response has no text")
	errStreamEvent = errors.New("stream error event")
)

// wrapErr classifies err as a generation failure, keeping network failures
// recognisable as transport errors.
func wrapErr(provider, op string, err error) error {
	if apierr.IsNetwork(err) {
		err = apierr.Transport("", "", err)
	}
	return apierr.Generation(provider, op, err)
}
