// Package logging provides centralized logging functionality using logrus.
// It configures structured logging with JSON formatting and provides
// convenience functions for different log levels.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// programName is used as a field in all log entries for identification
var programName = "a10_exporter"

// levels maps the configured log_level values to logrus levels.
// CRITICAL has no logrus equivalent below fatal, so it maps to FatalLevel.
var levels = map[string]log.Level{
	"DEBUG":    log.DebugLevel,
	"INFO":     log.InfoLevel,
	"WARN":     log.WarnLevel,
	"WARNING":  log.WarnLevel,
	"ERROR":    log.ErrorLevel,
	"CRITICAL": log.FatalLevel,
}

// LogInfo logs an informational message with the programName field.
func LogInfo(msg string) {
	log.WithFields(log.Fields{"job": programName}).Info(msg)
}

// LogError logs the provided error message with the programName field.
// This function should be used to log recoverable errors that do not terminate the program.
func LogError(msg string) {
	log.WithFields(log.Fields{"job": programName}).Error(msg)
}

// ParseLevel converts a configured log_level (case-insensitive) to a logrus level.
// Unknown values fall back to DEBUG; the boolean reports whether the value was recognised.
func ParseLevel(level string) (log.Level, bool) {
	if lvl, ok := levels[strings.ToUpper(strings.TrimSpace(level))]; ok {
		return lvl, true
	}
	return log.DebugLevel, false
}

// PrepareLogs initializes the logging system with the specified log file and level.
// It configures logging to write to both stdout and the log file with JSON formatting.
//
// Parameters:
//   - logName: Path to the log file (will be created if it doesn't exist)
//   - level: Severity threshold (DEBUG, INFO, WARN, ERROR, CRITICAL)
//
// An invalid level prints a notice to stdout and falls back to DEBUG.
// Returns an error if the log file cannot be opened or created.
func PrepareLogs(logName, level string) error {
	logFile, err := os.OpenFile(logName, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %v", err)
	}

	lvl, ok := ParseLevel(level)
	if !ok {
		fmt.Printf("%s is invalid log level, setting 'DEBUG' as default.\n", strings.ToUpper(level))
	}

	mw := io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(mw)
	log.SetFormatter(&log.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05-0700"})
	log.SetLevel(lvl)
	return nil
}

// SetLevel changes the severity threshold after startup, e.g. on config reload.
// Unknown values are ignored and the current level is kept.
func SetLevel(level string) {
	lvl, ok := ParseLevel(level)
	if !ok {
		log.Warnf("Ignoring invalid log level %q, keeping %s", level, log.GetLevel())
		return
	}
	if lvl != log.GetLevel() {
		log.Infof("Log level changed to %s", lvl)
		log.SetLevel(lvl)
	}
}
