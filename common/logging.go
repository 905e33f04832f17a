package common

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"time"
)

// Log levels for hierarchical logging
const (
	LevelDebug = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var logLevels = map[string]int{
	"debug": LevelDebug,
	"info":  LevelInfo,
	"warn":  LevelWarn,
	"error": LevelError,
	"fatal": LevelFatal,
}

// shouldLog determines if a message at the given level should be logged
func shouldLog(level string) bool {
	currentLevel := Env("PORTSCOPE_LOG_LEVEL", "info")

	currentLevelNum, ok1 := logLevels[strings.ToLower(currentLevel)]
	targetLevelNum, ok2 := logLevels[strings.ToLower(level)]

	if !ok1 || !ok2 {
		return true // Default to logging if unknown level
	}

	return targetLevelNum >= currentLevelNum
}

// logOutput handles both text and JSON output based on PORTSCOPE_LOG_FORMAT
func logOutput(level string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)

	// Ensure no secrets are accidentally logged
	message = sanitizeForLogging(message)

	if Env("PORTSCOPE_LOG_FORMAT", "text") == "json" {
		// JSON format for Loki/Grafana
		entry := map[string]interface{}{
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
			"level":     strings.ToLower(level), // Lowercase for Loki auto-detection
			"message":   message,
		}
		if jsonBytes, err := json.Marshal(entry); err == nil {
			fmt.Println(string(jsonBytes))
		} else {
			// Fallback to text if JSON fails
			fmt.Printf("%s: %s\n", level, message)
		}
	} else {
		// Standard text format with timestamp for consistency
		if level == "FATAL" {
			log.Printf("%s: %s", level, message)
		} else {
			fmt.Printf("%s/%s %s: %s\n",
				time.Now().Format("2006/01/02"),
				time.Now().Format("15:04:05"),
				level, message)
		}
	}
}

// DebugLog logs debug messages only if log level allows it
func DebugLog(format string, args ...interface{}) {
	if shouldLog("debug") {
		logOutput("DEBUG", format, args...)
	}
}

// InfoLog logs info messages only if log level allows it
func InfoLog(format string, args ...interface{}) {
	if shouldLog("info") {
		logOutput("INFO", format, args...)
	}
}

// WarnLog logs warning messages only if log level allows it
func WarnLog(format string, args ...interface{}) {
	if shouldLog("warn") {
		logOutput("WARN", format, args...)
	}
}

// ErrorLog logs error messages only if log level allows it
func ErrorLog(format string, args ...interface{}) {
	if shouldLog("error") {
		logOutput("ERROR", format, args...)
	}
}

// FatalLog logs fatal messages and exits (always shown)
func FatalLog(format string, args ...interface{}) {
	if Env("PORTSCOPE_LOG_FORMAT", "text") == "json" {
		message := fmt.Sprintf(format, args...)
		entry := map[string]interface{}{
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
			"level":     "fatal", // Lowercase for Loki auto-detection
			"message":   message,
		}
		if jsonBytes, err := json.Marshal(entry); err == nil {
			fmt.Println(string(jsonBytes))
		}
	} else {
		log.Fatalf("FATAL: "+format, args...)
	}
	os.Exit(1)
}

// sanitizeForLogging removes potential secrets from any string before logging
func sanitizeForLogging(line string) string {
	// Check if any protected environment variable values are in the string
	protectedEnvVars := []string{
		"PORTSCOPE_SESSION_SECRET",
		"PORTSCOPE_ADMIN_PASSWORD",
		"PORTSCOPE_ADMIN_PASSWORD_HASH",
		"PORTSCOPE_DB_DSN",
		"PORTSCOPE_DB_PASS",
		"DB_PASSWORD",
		"POSTGRES_PASSWORD",
	}

	for _, envVar := range protectedEnvVars {
		if value := os.Getenv(envVar); value != "" && value != "true" && value != "false" {
			// Replace the actual value with REDACTED
			line = strings.ReplaceAll(line, value, "***REDACTED***")
		}
		// Also check _FILE variants
		fileVar := envVar + "_FILE"
		if fileContent := os.Getenv(fileVar); fileContent != "" {
			line = strings.ReplaceAll(line, fileContent, "***REDACTED***")
		}
	}

	// Patterns that might contain secrets
	patterns := []string{
		`(?i)(password|passwd|pwd|secret|key|token|api[-_]?key|auth|credential|bearer)[-_=:\s]*[^\s]+`,
		`(?i)(mysql|postgres|postgresql|mongodb|redis|amqp)://[^@]+@[^\s]+`,
	}

	for _, pattern := range patterns {
		re := regexp.MustCompile(pattern)
		line = re.ReplaceAllStringFunc(line, func(match string) string {
			// Keep the label but redact the value
			parts := strings.SplitN(match, "=", 2)
			if len(parts) == 2 {
				return parts[0] + "=***REDACTED***"
			}
			parts = strings.SplitN(match, ":", 2)
			if len(parts) == 2 {
				return parts[0] + ":***REDACTED***"
			}
			return "***REDACTED***"
		})
	}
	return line
}
