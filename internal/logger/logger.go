package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"yoloview/internal/config"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides leveled logging (info/warning/error) to files and stdout/stderr.
type Logger struct {
	log    *zap.SugaredLogger
	files  []*os.File
	logDir string
	mu     sync.Mutex
}

// NewLogger creates a Logger and ensures the log directory exists.
// Every level goes to the console and to its own file in config.LogDirectory.
func NewLogger(config *config.Config) *Logger {
	if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
		log.Fatalf("Failed to create log directory: %v", err)
	}

	logger := &Logger{
		logDir: config.LogDirectory,
	}

	logger.setupLoggers()
	return logger
}

// New creates a Logger that writes JSON lines for every level to w. It keeps no files.
func New(w io.Writer) *Logger {
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(w), zap.InfoLevel)
	return &Logger{log: zap.New(core).Sugar()}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		MessageKey:     "message",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
}

// exactly enables a single level, so each file only holds its own entries.
func exactly(level zapcore.Level) zap.LevelEnablerFunc {
	return func(l zapcore.Level) bool { return l == level }
}

// setupLoggers initializes writers and per-level cores.
func (l *Logger) setupLoggers() {
	infoFileHandle := l.openLogFile(filepath.Join(l.logDir, "info.log"))
	warningFileHandle := l.openLogFile(filepath.Join(l.logDir, "warning.log"))
	errorFileHandle := l.openLogFile(filepath.Join(l.logDir, "error.log"))
	l.files = []*os.File{infoFileHandle, warningFileHandle, errorFileHandle}

	consoleConfig := encoderConfig()
	consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	console := zapcore.NewConsoleEncoder(consoleConfig)
	file := zapcore.NewJSONEncoder(encoderConfig())

	stdout := zapcore.Lock(os.Stdout)
	stderr := zapcore.Lock(os.Stderr)

	core := zapcore.NewTee(
		zapcore.NewCore(console, stdout, zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl >= zap.InfoLevel && lvl < zap.ErrorLevel
		})),
		zapcore.NewCore(console, stderr, zap.ErrorLevel),
		zapcore.NewCore(file, zapcore.AddSync(infoFileHandle), exactly(zap.InfoLevel)),
		zapcore.NewCore(file, zapcore.AddSync(warningFileHandle), exactly(zap.WarnLevel)),
		zapcore.NewCore(file, zapcore.AddSync(errorFileHandle), exactly(zap.ErrorLevel)),
	)
	l.log = zap.New(core).Sugar()
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(filename string) *os.File {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file %s: %v", filename, err)
	}
	return file
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.Info(fmt.Sprintf(format, v...))
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.Warn(fmt.Sprintf(format, v...))
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.Error(fmt.Sprintf(format, v...))
}

// Dir returns the directory holding the log files, or "" for writer-backed loggers.
func (l *Logger) Dir() string {
	return l.logDir
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return nil
	}
	filePath := filepath.Join(l.logDir, fileName)
	file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		l.Error("Error opening file: %v", err)
		return err
	}
	defer file.Close()

	l.Info("File %s has been cleared.", fileName)
	return nil
}

// Close flushes buffered entries and closes the log files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_ = l.log.Sync()
	var err error
	for _, f := range l.files {
		err = multierr.Append(err, f.Close())
	}
	l.files = nil
	return err
}
