package config

// Walk defaults.
const (
	DefaultWalkStart  = ""
	DefaultWalkWeeks  = 0
	DefaultWalkSubdir = ""
)

// Churn defaults.
const (
	DefaultChurnTrackNew = false
)

// Reducer defaults. Zero sizes the pool from the CPU count.
const (
	DefaultReducerWorkers   = 0
	DefaultReducerQueueSize = 0
)

// Repository defaults.
const (
	BackendLibgit2 = "libgit2"
	BackendGoGit   = "gogit"

	DefaultRepositoryBackend = BackendLibgit2
)

// Logging defaults.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"

	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = LogFormatText
)

// Telemetry defaults.
const (
	DefaultTelemetryOTLPEndpoint    = ""
	DefaultTelemetryOTLPInsecure    = false
	DefaultTelemetryDiagnosticsAddr = ""
)
