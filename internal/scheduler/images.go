package scheduler

import "github.com/rs/zerolog/log"

// NopImages satisfies ImageManager for hosts without an image pipeline.
type NopImages struct{}

func (NopImages) Prefetch(string) {}

// LoggingImages records prefetch requests; the demo host uses it in place
// of a platform image loader.
type LoggingImages struct{}

func (LoggingImages) Prefetch(source string) {
	log.Debug().Msgf("scheduler.Images.Prefetch source=%q", source)
}
