package gemini

// Cache stores raw model replies keyed by prompt.
type Cache interface {
	APICall(key string, requestPayload []byte) ([]byte, bool)
	SetAPICall(key string, requestPayload []byte, responseData []byte) error
}

// Logger is the subset of *slog.Logger the client uses.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}
