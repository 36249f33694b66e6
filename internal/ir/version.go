package ir

// Version constants for IR schema and engine.
const (
	// IRVersion is the schema declaration format version.
	IRVersion = "1"

	// EngineVersion is the flagsweep engine version.
	EngineVersion = "0.1.0"
)
