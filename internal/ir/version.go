package ir

// Version constants for the log schema and the binary.
const (
	// LogVersion is the invocation log schema version.
	LogVersion = "1"

	// EngineVersion is the abacus version.
	EngineVersion = "0.1.0"
)
