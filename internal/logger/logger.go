package logger

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// InitLogger configures the global logrus instance with the given level.
func InitLogger(level string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	logrus.SetLevel(parsed)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return nil
}
