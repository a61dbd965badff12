// Package logging provides categorized file-based debug logging for entail.
// Logs are written to one file per category under a logs directory. Logging
// is off by default so the library stays silent inside host processes; it is
// enabled with ENTAIL_DEBUG=1 (or Initialize) and tuned with
// ENTAIL_LOG_LEVEL and ENTAIL_LOG_JSON.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot   Category = "boot"   // Initialization
	CategoryEngine Category = "engine" // Fulfillment rounds, store transitions
	CategorySolver Category = "solver" // Oracle candidate assembly and verdicts
	CategoryProbe  Category = "probe"  // Speculative regions, rollbacks
	CategoryDiag   Category = "diag"   // Best-leaf extraction, error building
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// entry is the JSON form of one log line when ENTAIL_LOG_JSON=1.
type entry struct {
	Timestamp int64  `json:"ts"` // Unix milliseconds
	Category  string `json:"cat"`
	Level     string `json:"lvl"`
	Message   string `json:"msg"`
}

// Logger wraps a standard logger with a category and file output. A Logger
// with a nil inner logger is a no-op.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	mu         sync.RWMutex
	loggers    = make(map[Category]*Logger)
	logsDir    string
	enabled    bool
	jsonFormat bool
	logLevel   = LevelInfo
	envLoaded  bool
)

// Initialize enables logging into dir. Most callers never call this; the
// environment variables cover the debug workflow.
func Initialize(dir string) error {
	if dir == "" {
		return fmt.Errorf("logs directory required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	mu.Lock()
	logsDir = dir
	enabled = true
	envLoaded = true
	mu.Unlock()

	boot := Get(CategoryBoot)
	boot.Info("=== entail logging initialized ===")
	boot.Info("Logs directory: %s", dir)
	boot.Info("Level: %d json: %v", logLevel, jsonFormat)
	return nil
}

// loadEnvLocked applies the ENTAIL_* environment once. Caller holds mu.
func loadEnvLocked() {
	if envLoaded {
		return
	}
	envLoaded = true

	if os.Getenv("ENTAIL_DEBUG") != "1" {
		return
	}
	enabled = true
	logsDir = os.Getenv("ENTAIL_LOG_DIR")
	if logsDir == "" {
		logsDir = filepath.Join(os.TempDir(), "entail-logs")
	}
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not create %s: %v\n", logsDir, err)
		enabled = false
		return
	}
	jsonFormat = os.Getenv("ENTAIL_LOG_JSON") == "1"
	switch os.Getenv("ENTAIL_LOG_LEVEL") {
	case "debug":
		logLevel = LevelDebug
	case "info", "":
		logLevel = LevelInfo
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	}
}

// Get returns (or creates) the logger for a category. It returns a no-op
// logger when logging is disabled.
func Get(category Category) *Logger {
	mu.Lock()
	loadEnvLocked()
	if !enabled || logsDir == "" {
		mu.Unlock()
		return &Logger{category: category}
	}
	if l, ok := loggers[category]; ok {
		mu.Unlock()
		return l
	}

	date := time.Now().Format("2006-01-02")
	path := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		mu.Unlock()
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", path, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	mu.Unlock()
	return l
}

func (l *Logger) write(level int, name, format string, args ...interface{}) {
	if l.logger == nil || logLevel > level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if jsonFormat {
		data, err := json.Marshal(entry{
			Timestamp: time.Now().UnixMilli(),
			Category:  string(l.category),
			Level:     name,
			Message:   msg,
		})
		if err == nil {
			l.logger.Printf("%s", data)
			return
		}
	}
	l.logger.Printf("[%s] %s", name, msg)
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.write(LevelDebug, "DEBUG", format, args...)
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.write(LevelInfo, "INFO", format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write(LevelWarn, "WARN", format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.write(LevelError, "ERROR", format, args...)
}

// CloseAll closes all open log files (call at shutdown).
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// Timer helps measure operation duration.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// Convenience helpers for the hot categories.

// Engine logs to the engine category.
func Engine(format string, args ...interface{}) {
	Get(CategoryEngine).Info(format, args...)
}

// EngineDebug logs debug to the engine category.
func EngineDebug(format string, args ...interface{}) {
	Get(CategoryEngine).Debug(format, args...)
}

// Solver logs to the solver category.
func Solver(format string, args ...interface{}) {
	Get(CategorySolver).Info(format, args...)
}

// SolverDebug logs debug to the solver category.
func SolverDebug(format string, args ...interface{}) {
	Get(CategorySolver).Debug(format, args...)
}

// Diag logs to the diag category.
func Diag(format string, args ...interface{}) {
	Get(CategoryDiag).Info(format, args...)
}

// DiagDebug logs debug to the diag category.
func DiagDebug(format string, args ...interface{}) {
	Get(CategoryDiag).Debug(format, args...)
}
