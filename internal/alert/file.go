package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/dwsmith1983/testgate/pkg/types"
)

// fileLine is one JSON line in the alert log. ExitCode is set only when the
// alert carries a verdict.
type fileLine struct {
	types.Alert
	RunKey   string `json:"runKey"`
	ExitCode *int   `json:"exitCode,omitempty"`
}

func newFileLine(a types.Alert) fileLine {
	line := fileLine{Alert: a, RunKey: a.Key.String()}
	if a.Verdict != "" {
		code := a.Verdict.ExitCode()
		line.ExitCode = &code
	}
	return line
}

// FileSink appends gate alerts as JSON lines to a file.
type FileSink struct {
	path string
	mu   sync.Mutex
}

// NewFileSink creates a file sink, failing early if path is not writable.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening alert file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing alert file %s: %w", path, err)
	}
	return &FileSink{path: path}, nil
}

// Name returns the sink identifier.
func (s *FileSink) Name() string { return "file" }

// Send appends one line for alert, tagged with its run key and, once a
// verdict exists, the exit code the gate reports for it.
func (s *FileSink) Send(_ context.Context, alert types.Alert) error {
	data, err := json.Marshal(newFileLine(alert))
	if err != nil {
		return fmt.Errorf("encoding alert for run %s: %w", alert.RunID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening alert file %s: %w", s.path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing alert for run %s: %w", alert.RunID, err)
	}
	return nil
}
