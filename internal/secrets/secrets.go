// Package secrets decides whether protected credentials are available to a
// run. When they are not, the gate short-circuits instead of running jobs.
package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dwsmith1983/testgate/pkg/types"
)

// Provider names accepted in configuration.
const (
	ProviderStatic         = "static"
	ProviderSameRepo       = "same-repo"
	ProviderSecretsManager = "secretsmanager"
)

// Checker reports whether secrets are available to the current run.
type Checker interface {
	Available(ctx context.Context) (bool, error)
}

// Static is a fixed answer, typically from a CLI flag.
type Static bool

// Available implements Checker.
func (s Static) Available(context.Context) (bool, error) { return bool(s), nil }

// SameRepository applies the fork rule: secrets are exposed only when the
// change comes from the repository that owns them.
type SameRepository struct {
	Head string
	Base string
}

// Available implements Checker. Repository names compare case-insensitively.
func (s SameRepository) Available(context.Context) (bool, error) {
	if s.Head == "" || s.Base == "" {
		return false, fmt.Errorf("head and base repository are both required")
	}
	return strings.EqualFold(s.Head, s.Base), nil
}

// Resolve asks c and treats any error as unavailable.
func Resolve(ctx context.Context, c Checker, logger *slog.Logger) bool {
	if c == nil {
		return false
	}
	if logger == nil {
		logger = slog.Default()
	}
	ok, err := c.Available(ctx)
	if err != nil {
		logger.Warn("secret availability check failed, treating secrets as unavailable", "error", err)
		return false
	}
	return ok
}

// Options carries runtime inputs for checkers that need them.
type Options struct {
	Available bool
	HeadRepo  string
	BaseRepo  string
}

// New builds the checker named by cfg. A nil cfg means the static checker.
func New(ctx context.Context, cfg *types.SecretsConfig, opts Options) (Checker, error) {
	provider := ProviderStatic
	if cfg != nil && cfg.Provider != "" {
		provider = cfg.Provider
	}

	switch provider {
	case ProviderStatic:
		return Static(opts.Available), nil
	case ProviderSameRepo:
		return SameRepository{Head: opts.HeadRepo, Base: opts.BaseRepo}, nil
	case ProviderSecretsManager:
		return NewSecretsManager(ctx, cfg.SecretIDs, WithRegion(cfg.Region))
	default:
		return nil, fmt.Errorf("unknown secrets provider %q", provider)
	}
}
