package ir

// Version constants for summary digests and the engine.
const (
	// DigestVersion is the summary digest schema version.
	DigestVersion = "1"

	// EngineVersion is the stepwise engine version.
	EngineVersion = "0.1.0"
)
