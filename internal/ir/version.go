package ir

// Version constants for emitted documents and the tool.
const (
	// SchemaVersion is the document schema version.
	SchemaVersion = "1"

	// ToolVersion is the udonmeta version.
	ToolVersion = "0.1.0"
)
