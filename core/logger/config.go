package logger

// Config holds configuration for the logger.
type Config struct {
	// Level is the minimum level logged: DEBUG, INFO, WARNING or ERROR.
	Level string `mapstructure:"level" default:"INFO"`
	// Format is the output encoding: console or json.
	Format string `mapstructure:"format" default:"console"`
}
