package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/entrhq/catalogsync/pkg/config"
)

// Logger provides leveled logging for catalogsync components.
// Output goes to the global zap core installed by Initialize: a JSON file
// in the configured log directory named after the session ID, plus an
// optional console core on stderr.
//
// Loggers created before Initialize is called are not lost; every call
// resolves the current global core.
type Logger struct {
	component string
}

var (
	// global holds the process-wide base logger.
	global atomic.Pointer[zap.Logger]

	// Global session ID for the current execution
	sessionID     string
	sessionIDOnce sync.Once

	logPath string
	mu      sync.Mutex
)

func init() {
	global.Store(zap.NewNop())
}

// getSessionID returns or creates the session ID for this execution
func getSessionID() string {
	sessionIDOnce.Do(func() {
		sessionID = uuid.New().String()
	})
	return sessionID
}

// Initialize installs the global logging core. It returns the path of the
// session log file, or an empty path when only console logging is active.
// If the log directory cannot be created the console core is still
// installed and the error is returned so callers can report fallback mode.
func Initialize(cfg config.LoggingConfig) (string, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var cores []zapcore.Core
	if cfg.Console {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level))
	}

	var initErr error
	path := ""
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
			initErr = fmt.Errorf("failed to create log directory: %w", err)
		} else {
			path = filepath.Join(cfg.Dir, fmt.Sprintf("%s-catalogsync.log", getSessionID()))
			writer := zapcore.AddSync(&lumberjack.Logger{
				Filename:   path,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays,
			})
			cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), writer, level))
		}
	}

	if initErr != nil && !cfg.Console {
		// Never leave the process without any sink.
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level))
	}

	base := zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel)).
		With(zap.String("session", getSessionID()))

	mu.Lock()
	logPath = path
	mu.Unlock()
	global.Store(base)

	return path, initErr
}

// Sync flushes buffered log entries.
func Sync() error {
	return global.Load().Sync()
}

// Reset restores the no-op logger. Intended for tests.
func Reset() {
	global.Store(zap.NewNop())
	mu.Lock()
	logPath = ""
	mu.Unlock()
}

// NewLogger creates a new logger for a specific component.
func NewLogger(component string) *Logger {
	return &Logger{component: component}
}

// Zap returns the underlying zap logger named after the component.
func (l *Logger) Zap() *zap.Logger {
	return global.Load().Named(l.component)
}

func (l *Logger) sugar() *zap.SugaredLogger {
	return l.Zap().Sugar()
}

// Debugf logs a debug-level message
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.sugar().Debugf(format, v...)
}

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.sugar().Infof(format, v...)
}

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.sugar().Warnf(format, v...)
}

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.sugar().Errorf(format, v...)
}

// Component returns the component name.
func (l *Logger) Component() string {
	return l.component
}

// GetSessionID returns the current global session ID
func GetSessionID() string {
	return getSessionID()
}

// LogPath returns the path of the session log file, if any.
func LogPath() string {
	mu.Lock()
	defer mu.Unlock()
	return logPath
}
