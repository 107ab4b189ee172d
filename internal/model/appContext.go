package model

type contextKey string

const (
	ContextAppName    contextKey = "appName"
	ContextAppVersion contextKey = "appVersion"
	ContextAppAuthor  contextKey = "appAuthor"
	ContextConfigFile contextKey = "configFile"
	ContextCycleID    contextKey = "cycleID"
	ContextRequestID  contextKey = "requestID"
)

// StringFromContext returns the string stored under key, or "" when unset.
func StringFromContext(ctx interface{ Value(any) any }, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
