package alert

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/dwsmith1983/testgate/pkg/types"
)

// ConsoleSink writes alerts to the terminal with color.
type ConsoleSink struct {
	w io.Writer
}

// NewConsoleSink creates a console alert sink writing to w.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

// Name returns the sink identifier.
func (s *ConsoleSink) Name() string { return "console" }

// Send writes an alert with color-coded severity.
func (s *ConsoleSink) Send(_ context.Context, alert types.Alert) error {
	var prefix string
	switch alert.Level {
	case types.AlertLevelError:
		prefix = color.RedString("[ERROR]")
	case types.AlertLevelWarning:
		prefix = color.YellowString("[WARN]")
	default:
		prefix = color.CyanString("[INFO]")
	}

	line := fmt.Sprintf("%s [%s] %s", prefix, alert.Key, alert.Message)
	if len(alert.Failed) > 0 {
		line += " (failed: " + strings.Join(alert.Failed, ", ") + ")"
	}
	_, err := fmt.Fprintln(s.w, line)
	return err
}
