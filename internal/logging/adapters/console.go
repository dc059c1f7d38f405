package adapters

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"autohawk/internal/logging/types"
)

// ConsoleAdapter writes log entries to a terminal stream
type ConsoleAdapter struct {
	name      string
	format    string
	colorized bool
	out       io.Writer
	mu        sync.Mutex
}

// ConsoleConfig represents configuration for the console adapter
type ConsoleConfig struct {
	Format    string `yaml:"format"`    // json or text
	Colorized bool   `yaml:"colorized"` // enable colored output
	Stream    string `yaml:"stream"`    // stdout or stderr
}

// NewConsoleAdapter creates an adapter bound to stdout or stderr
func NewConsoleAdapter(name string, config ConsoleConfig) *ConsoleAdapter {
	var out io.Writer = os.Stdout
	if strings.EqualFold(config.Stream, "stderr") {
		out = os.Stderr
	}
	return NewWriterAdapter(name, config, out)
}

// NewWriterAdapter creates a console adapter writing to out
func NewWriterAdapter(name string, config ConsoleConfig, out io.Writer) *ConsoleAdapter {
	return &ConsoleAdapter{
		name:      name,
		format:    config.Format,
		colorized: config.Colorized,
		out:       out,
	}
}

// Write writes a log entry to the stream
func (a *ConsoleAdapter) Write(entry *types.LogEntry) error {
	output, err := format(entry, a.format, a.colorized)
	if err != nil {
		return fmt.Errorf("failed to format log entry: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	_, err = fmt.Fprintln(a.out, output)
	return err
}

// Close is a no-op; the process owns the standard streams
func (a *ConsoleAdapter) Close() error {
	return nil
}

func (a *ConsoleAdapter) Health() error {
	return nil
}

func (a *ConsoleAdapter) Name() string {
	return a.name
}
