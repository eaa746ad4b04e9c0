package config

import "time"

// Solver defaults.
const (
	DefaultSolverInstanceLimit  = 0
	DefaultSolverAcceptPartials = false
	DefaultSolverTimeout        = 30 * time.Second
	DefaultSolverSearchMeasures = 2
)

// Logging defaults.
const (
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = "text"
)

// Observability defaults.
const (
	DefaultObservabilityEndpoint    = ""
	DefaultObservabilityInsecure    = false
	DefaultObservabilitySampleRatio = 0.0
)

// Server defaults.
const (
	DefaultServerHost = "127.0.0.1"
	DefaultServerPort = 8080
)

// Render defaults.
const (
	DefaultRenderTicksPerQuarter = 960
	DefaultRenderVelocity        = 90
	DefaultRenderChannel         = 0
)
