package asgi

// LogLevel is a closed set of severities, mirroring the levels hclog
// exposes (Trace, Debug, Info, Warn, Error, Off) so it maps 1:1 onto the
// logger without a translation table at every call site.
type LogLevel string

const (
	LogTrace LogLevel = "trace"
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
	LogOff   LogLevel = "off"
)

// Valid reports whether l is one of the recognized levels.
func (l LogLevel) Valid() bool {
	switch l {
	case LogTrace, LogDebug, LogInfo, LogWarn, LogError, LogOff:
		return true
	default:
		return false
	}
}
