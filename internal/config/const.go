package config

const (
	LogLevelDebug   string = "debug"
	LogLevelInfo    string = "info"
	LogLevelWarning string = "warn"
	LogLevelError   string = "error"

	Version string = "0.1.0"
)

// Defaults for the demo command.
const (
	DefaultDemoDisks    int   = 4
	DefaultDemoUnitSize int64 = 4096
	DefaultDemoDiskSize int64 = 1 << 20
	DefaultDemoFailDisk int   = 1
)
