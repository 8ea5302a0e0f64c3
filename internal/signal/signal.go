// Package signal decodes the change-detection artifact into a ChangeSignal.
//
// Decoding never fails. A missing, unreadable or malformed artifact yields
// the zero ChangeSignal, in which every job and the dependency flag are
// false. Values that are not a JSON boolean or the strings "true"/"false"
// are treated as false.
package signal

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/dwsmith1983/testgate/pkg/types"
)

// DefaultDependenciesKey is the flat-artifact key that carries the global
// dependency-change flag.
const DefaultDependenciesKey = "dependencies"

// DependenciesChangedKey carries the global dependency-change flag in both
// artifact shapes.
const DependenciesChangedKey = "dependencies_changed"

const changedKey = "changed"

// Decoder turns artifact bytes into a ChangeSignal.
type Decoder struct {
	dependenciesKey string
	logger          *slog.Logger
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithDependenciesKey overrides the flat-artifact dependency key.
func WithDependenciesKey(key string) Option {
	return func(d *Decoder) {
		if key != "" {
			d.dependenciesKey = key
		}
	}
}

// WithLogger sets the logger used for recovered decoding problems.
func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDecoder creates a Decoder.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		dependenciesKey: DefaultDependenciesKey,
		logger:          slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// LoadFile reads the artifact at path. "-" reads standard input. An empty
// path or a missing file yields the zero signal.
func (d *Decoder) LoadFile(path string) types.ChangeSignal {
	if path == "" {
		d.logger.Warn("no change signal configured, defaulting every job to unchanged")
		return types.ChangeSignal{}
	}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			d.logger.Warn("change signal artifact not found, defaulting every job to unchanged", "path", path)
		} else {
			d.logger.Warn("change signal artifact unreadable, defaulting every job to unchanged", "path", path, "error", err)
		}
		return types.ChangeSignal{}
	}
	return d.Decode(data)
}

// Decode parses artifact bytes. Two shapes are accepted:
//
//	{"aws": true, "gcp": "false", "dependencies": true}
//	{"changed": {"aws": true}, "dependencies_changed": true}
//
// In the flat shape both the configured dependency key and
// "dependencies_changed" set the global flag and never name a job.
func (d *Decoder) Decode(data []byte) types.ChangeSignal {
	if len(bytes.TrimSpace(data)) == 0 {
		d.logger.Warn("change signal artifact is empty, defaulting every job to unchanged")
		return types.ChangeSignal{}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		d.logger.Warn("change signal artifact malformed, defaulting every job to unchanged", "error", err)
		return types.ChangeSignal{}
	}

	deps, hasDeps := raw[DependenciesChangedKey]
	changed, hasChanged := raw[changedKey]
	switch {
	case hasChanged && isObject(changed):
		return d.decodeStructured(changed, deps)
	case hasChanged && hasDeps:
		if !isNull(changed) {
			d.logger.Warn("change signal \"changed\" section is not an object, treating every job as unchanged")
		}
		return d.decodeStructured(nil, deps)
	}

	sig := types.ChangeSignal{Changed: make(map[string]bool, len(raw))}
	for name, v := range raw {
		if name == d.dependenciesKey || name == DependenciesChangedKey {
			sig.DependenciesChanged = d.flag(name, v) || sig.DependenciesChanged
			continue
		}
		sig.Changed[name] = d.flag(name, v)
	}
	return sig
}

func (d *Decoder) decodeStructured(changed, deps json.RawMessage) types.ChangeSignal {
	var entries map[string]json.RawMessage
	if changed == nil {
		entries = map[string]json.RawMessage{}
	} else if err := json.Unmarshal(changed, &entries); err != nil {
		d.logger.Warn("change signal \"changed\" section malformed, defaulting every job to unchanged", "error", err)
		return types.ChangeSignal{}
	}
	sig := types.ChangeSignal{Changed: make(map[string]bool, len(entries))}
	for name, v := range entries {
		sig.Changed[name] = d.flag(name, v)
	}
	if deps != nil {
		sig.DependenciesChanged = d.flag(DependenciesChangedKey, deps)
	}
	return sig
}

// flag converts one artifact value to a boolean, defaulting to false.
func (d *Decoder) flag(name string, v json.RawMessage) bool {
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true":
			return true
		case "false", "":
			return false
		}
	}
	d.logger.Warn("change signal value not a boolean, treating as unchanged", "key", name, "value", string(v))
	return false
}

func isObject(v json.RawMessage) bool {
	t := bytes.TrimSpace(v)
	return len(t) > 0 && t[0] == '{'
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
