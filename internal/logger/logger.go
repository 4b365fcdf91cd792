// Package logger configures the process-wide logrus instance.
package logger

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// Setup routes logs to stderr so command output on stdout stays
// machine-readable. Verbose enables debug-level detail from the
// parsers and the locator.
func Setup(verbose bool) {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{
		DisableTimestamp: true,
	})
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}
}
