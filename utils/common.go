package utils

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var logger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:    opts.noColorize,
		DisableTimestamp: true,
	})
	return l
}()

// Log retrieves the process-wide logger.
func Log() *logrus.Logger {
	return logger
}

// CanColorize wraps a color function such that it is only applied when
// colorization is enabled.
func CanColorize(col func(...interface{}) string) func(...interface{}) string {
	return func(is ...interface{}) string {
		if opts.noColorize {
			return fmt.Sprintf(strings.Repeat("%s", len(is)), is...)
		}
		return col(is...)
	}
}

// SetColorize toggles colorized output. Mainly useful for golden tests.
func SetColorize(on bool) {
	opts.noColorize = !on
}

func TimeTrack(start time.Time, name string) {
	logger.WithField("elapsed", time.Since(start)).Debugf("%s finished", name)
}
