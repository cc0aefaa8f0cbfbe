package logutil

import (
	"encoding/json"
	"log"
	"strings"
	"sync/atomic"
	"time"
)

const (
	levelDebug int32 = iota
	levelInfo
	levelWarn
	levelError
)

var minLevel atomic.Int32

func init() {
	minLevel.Store(levelInfo)
}

// SetLevel sets the minimum level emitted (debug|info|warn|error).
func SetLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		minLevel.Store(levelDebug)
	case "warn", "warning":
		minLevel.Store(levelWarn)
	case "error":
		minLevel.Store(levelError)
	default:
		minLevel.Store(levelInfo)
	}
}

// Debug logs a structured debug message.
func Debug(msg string, fields map[string]interface{}) {
	logJSON(levelDebug, "debug", msg, fields)
}

// Info logs a structured info message.
func Info(msg string, fields map[string]interface{}) {
	logJSON(levelInfo, "info", msg, fields)
}

// Warn logs a structured warning, attaching err when present.
func Warn(msg string, err error, fields map[string]interface{}) {
	logJSON(levelWarn, "warn", msg, withError(fields, err))
}

// Error logs a structured error message including the error string.
func Error(msg string, err error, fields map[string]interface{}) {
	logJSON(levelError, "error", msg, withError(fields, err))
}

func withError(fields map[string]interface{}, err error) map[string]interface{} {
	if err == nil {
		return fields
	}
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["error"] = err.Error()
	return out
}

func logJSON(rank int32, level, msg string, fields map[string]interface{}) {
	if rank < minLevel.Load() {
		return
	}
	entry := map[string]interface{}{
		"level":     level,
		"message":   msg,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range fields {
		entry[k] = v
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		log.Printf("%s: %+v", msg, fields)
		return
	}
	log.Printf("%s", payload)
}
