package logconfig

import (
	"fmt"
	"strings"

	myLogger "github.com/sirupsen/logrus"
)

// Terminal output with caller info, used in tests and local runs.
func ConfigDebugLogger() {
	myLogger.SetReportCaller(true)
	myLogger.SetLevel(myLogger.DebugLevel)
	myLogger.SetFormatter(&myLogger.TextFormatter{
		ForceColors:            true,
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	})
}

func ConfigInfoLogger() {
	myLogger.SetReportCaller(false)
	myLogger.SetLevel(myLogger.InfoLevel)
	myLogger.SetFormatter(&myLogger.TextFormatter{
		ForceColors:            true,
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	})
}

// JSON lines with timestamps, for log collectors.
func ConfigProductionLogger() {
	myLogger.SetReportCaller(false)
	myLogger.SetLevel(myLogger.InfoLevel)
	myLogger.SetFormatter(&myLogger.JSONFormatter{})
}

// ConfigLogger picks a preset by name: "debug", "info" or "production".
// Any other logrus level name keeps the production format at that level.
func ConfigLogger(level string) error {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		ConfigInfoLogger()
	case "debug":
		ConfigDebugLogger()
	case "production":
		ConfigProductionLogger()
	default:
		lvl, err := myLogger.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("unknown log level %q: %w", level, err)
		}
		ConfigProductionLogger()
		myLogger.SetLevel(lvl)
	}
	return nil
}
