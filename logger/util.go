package logger

// WithKV returns a new logger with the given key/value pair added to its metadata.
func WithKV(logger Logger, key string, value interface{}) Logger {
	return logger.With(map[string]interface{}{key: value})
}
