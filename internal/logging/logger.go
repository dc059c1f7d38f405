package logging

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"autohawk/internal/logging/types"
)

// sinks is the adapter set shared by a logger and everything derived from it
type sinks struct {
	mu       sync.RWMutex
	adapters map[string]types.LogAdapter
	level    LogLevel
}

// MultiLogger is the main implementation of the Logger interface
type MultiLogger struct {
	sinks   *sinks
	context context.Context
	fields  map[string]interface{}
}

// exit is swapped in tests so Fatal can be exercised
var exit = os.Exit

func NewMultiLogger() *MultiLogger {
	return &MultiLogger{
		sinks: &sinks{
			adapters: make(map[string]types.LogAdapter),
			level:    InfoLevel,
		},
		context: context.Background(),
		fields:  make(map[string]interface{}),
	}
}

// NewLogger builds a standalone logger over the given adapters
func NewLogger(level LogLevel, adapters ...types.LogAdapter) *MultiLogger {
	l := NewMultiLogger()
	l.SetLevel(level)
	for _, adapter := range adapters {
		_ = l.AddAdapter(adapter)
	}
	return l
}

func (l *MultiLogger) Debug(message string, fields ...map[string]interface{}) {
	l.Log(DebugLevel, message, fields...)
}

func (l *MultiLogger) Info(message string, fields ...map[string]interface{}) {
	l.Log(InfoLevel, message, fields...)
}

func (l *MultiLogger) Warn(message string, fields ...map[string]interface{}) {
	l.Log(WarnLevel, message, fields...)
}

func (l *MultiLogger) Error(message string, fields ...map[string]interface{}) {
	l.Log(ErrorLevel, message, fields...)
}

// Fatal logs, closes every adapter and exits the process
func (l *MultiLogger) Fatal(message string, fields ...map[string]interface{}) {
	l.Log(FatalLevel, message, fields...)
	l.Close()
	exit(1)
}

// Log logs a message at the specified level
func (l *MultiLogger) Log(level LogLevel, message string, fields ...map[string]interface{}) {
	l.sinks.mu.RLock()
	defer l.sinks.mu.RUnlock()

	if level < l.sinks.level {
		return
	}

	entry := &types.LogEntry{
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
		Context:   l.context,
		Fields:    l.mergeFields(fields...),
	}

	// stable order keeps multi-adapter output predictable
	names := make([]string, 0, len(l.sinks.adapters))
	for name := range l.sinks.adapters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := l.sinks.adapters[name].Write(entry); err != nil {
			// stderr only, logging the failure would recurse
			fmt.Fprintf(os.Stderr, "logging adapter %s error: %v\n", name, err)
		}
	}
}

func (l *MultiLogger) WithContext(ctx context.Context) Logger {
	return &MultiLogger{
		sinks:   l.sinks,
		context: ctx,
		fields:  l.copyFields(),
	}
}

func (l *MultiLogger) WithField(key string, value interface{}) Logger {
	fields := l.copyFields()
	fields[key] = value

	return &MultiLogger{
		sinks:   l.sinks,
		context: l.context,
		fields:  fields,
	}
}

func (l *MultiLogger) WithFields(fields map[string]interface{}) Logger {
	return &MultiLogger{
		sinks:   l.sinks,
		context: l.context,
		fields:  l.mergeFields(fields),
	}
}

// SetLevel sets the minimum log level for this logger and all derived loggers
func (l *MultiLogger) SetLevel(level LogLevel) {
	l.sinks.mu.Lock()
	defer l.sinks.mu.Unlock()
	l.sinks.level = level
}

func (l *MultiLogger) GetLevel() LogLevel {
	l.sinks.mu.RLock()
	defer l.sinks.mu.RUnlock()
	return l.sinks.level
}

func (l *MultiLogger) AddAdapter(adapter types.LogAdapter) error {
	l.sinks.mu.Lock()
	defer l.sinks.mu.Unlock()

	name := adapter.Name()
	if _, exists := l.sinks.adapters[name]; exists {
		return fmt.Errorf("adapter %s already exists", name)
	}

	l.sinks.adapters[name] = adapter
	return nil
}

func (l *MultiLogger) RemoveAdapter(adapterName string) error {
	l.sinks.mu.Lock()
	defer l.sinks.mu.Unlock()

	adapter, exists := l.sinks.adapters[adapterName]
	if !exists {
		return fmt.Errorf("adapter %s not found", adapterName)
	}

	if err := adapter.Close(); err != nil {
		return fmt.Errorf("failed to close adapter %s: %w", adapterName, err)
	}

	delete(l.sinks.adapters, adapterName)
	return nil
}

// Close closes all adapters
func (l *MultiLogger) Close() error {
	l.sinks.mu.Lock()
	defer l.sinks.mu.Unlock()

	var errors []string
	for name, adapter := range l.sinks.adapters {
		if err := adapter.Close(); err != nil {
			errors = append(errors, fmt.Sprintf("adapter %s: %v", name, err))
		}
	}

	if len(errors) > 0 {
		sort.Strings(errors)
		return fmt.Errorf("failed to close adapters: %s", strings.Join(errors, ", "))
	}

	return nil
}

func (l *MultiLogger) copyFields() map[string]interface{} {
	fields := make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	return fields
}

func (l *MultiLogger) mergeFields(additionalFields ...map[string]interface{}) map[string]interface{} {
	fields := l.copyFields()

	for _, fieldMap := range additionalFields {
		for k, v := range fieldMap {
			fields[k] = v
		}
	}

	return fields
}

// ParseLogLevel parses a string log level into LogLevel, defaulting to info
func ParseLogLevel(levelStr string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}
