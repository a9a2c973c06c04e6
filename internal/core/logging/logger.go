// Package logging provides component-scoped child loggers.
package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Component returns a child of the global logger tagged with the component
// name under the "cmp" key, so the engine's records can be filtered by
// subsystem (store, planner, orchestrator, and so on).
func Component(name string) zerolog.Logger {
	return log.With().Str("cmp", name).Logger()
}
