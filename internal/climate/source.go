package climate

import "context"

// Change sources recorded with state history.
const (
	SourceMQTT    = "mqtt"
	SourceAPI     = "api"
	SourceSensor  = "sensor"
	SourceRestore = "restore"
)

type sourceKey struct{}

// WithSource tags ctx with the origin of a state change. Observers read it
// back with SourceFromContext.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFromContext returns the change source, or SourceMQTT if untagged.
func SourceFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return SourceMQTT
}
