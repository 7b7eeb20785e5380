package logging

// Viper key and accepted values for the log setup.
const (
	LOG_LEVEL       = "LOG_LEVEL"
	LOG_LEVEL_DEBUG = "debug"
	LOG_LEVEL_PROD  = "production"
	LOG_LEVEL_ELK   = "elk"
)
