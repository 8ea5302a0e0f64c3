// Package config handles loading and validation of testgate.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dwsmith1983/testgate/internal/gate"
	"github.com/dwsmith1983/testgate/internal/retry"
	"github.com/dwsmith1983/testgate/internal/secrets"
	"github.com/dwsmith1983/testgate/internal/verdict"
	"github.com/dwsmith1983/testgate/pkg/types"
)

// FileName is the configuration file looked up inside a directory.
const FileName = "testgate.yaml"

// Store providers.
const (
	StoreMemory   = "memory"
	StoreDynamoDB = "dynamodb"
)

// Load reads and validates a config file. path may name the file or the
// directory holding testgate.yaml.
func Load(path string) (*types.ProjectConfig, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, FileName)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg types.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func validate(cfg *types.ProjectConfig) error {
	if cfg.Workflow == "" {
		return fmt.Errorf("workflow is required")
	}
	if err := validateDefaults(&cfg.Defaults); err != nil {
		return err
	}

	seen := make(map[string]bool, len(cfg.Jobs))
	for i, j := range cfg.Jobs {
		if j.Name == "" {
			return fmt.Errorf("jobs[%d]: name is required", i)
		}
		if seen[j.Name] {
			return fmt.Errorf("jobs[%d]: duplicate job name %q", i, j.Name)
		}
		seen[j.Name] = true
		if j.Command == "" && cfg.Defaults.Command == "" {
			return fmt.Errorf("job %q: command is required when defaults.command is not set", j.Name)
		}
		if err := checkDuration("job "+j.Name+" attemptTimeout", j.AttemptTimeout); err != nil {
			return err
		}
		if j.MaxAttempts < 0 {
			return fmt.Errorf("job %q: maxAttempts must not be negative", j.Name)
		}
	}

	if s := cfg.Store; s != nil {
		switch s.Provider {
		case "", StoreMemory:
		case StoreDynamoDB:
			if s.DynamoDB == nil || s.DynamoDB.TableName == "" {
				return fmt.Errorf("store.dynamodb.tableName is required when provider is dynamodb")
			}
			if err := checkDuration("store.dynamodb.retentionTTL", s.DynamoDB.RetentionTTL); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown store provider %q", s.Provider)
		}
	}

	if s := cfg.Secrets; s != nil {
		switch s.Provider {
		case "", secrets.ProviderStatic, secrets.ProviderSameRepo:
		case secrets.ProviderSecretsManager:
			if len(s.SecretIDs) == 0 {
				return fmt.Errorf("secrets.secretIds is required when provider is secretsmanager")
			}
		default:
			return fmt.Errorf("unknown secrets provider %q", s.Provider)
		}
	}

	for i, a := range cfg.Alerts {
		switch a.Type {
		case types.AlertConsole:
		case types.AlertWebhook:
			if a.URL == "" {
				return fmt.Errorf("alerts[%d]: webhook url is required", i)
			}
		case types.AlertFile:
			if a.Path == "" {
				return fmt.Errorf("alerts[%d]: file path is required", i)
			}
		case types.AlertEventBridge:
			if a.EventBusName == "" {
				return fmt.Errorf("alerts[%d]: eventBusName is required", i)
			}
		default:
			return fmt.Errorf("alerts[%d]: unknown alert type %q", i, a.Type)
		}
	}
	return nil
}

func validateDefaults(d *types.DefaultsConfig) error {
	if _, err := verdict.ShortCircuit(d.SecretShortCircuit); err != nil {
		return fmt.Errorf("defaults.secretShortCircuit must be %q or %q: %w",
			types.ShortCircuitSucceed, types.ShortCircuitFail, err)
	}
	for name, v := range map[string]string{
		"defaults.attemptTimeout": d.AttemptTimeout,
		"defaults.runCeiling":     d.RunCeiling,
		"defaults.killGrace":      d.KillGrace,
	} {
		if err := checkDuration(name, v); err != nil {
			return err
		}
	}
	if d.MaxAttempts < 0 {
		return fmt.Errorf("defaults.maxAttempts must not be negative")
	}
	if d.MaxParallel < 0 {
		return fmt.Errorf("defaults.maxParallel must not be negative")
	}
	if b := d.Backoff; b != nil {
		if b.Strategy != "" && !retry.ValidStrategy(b.Strategy) {
			return fmt.Errorf("unknown backoff strategy %q", b.Strategy)
		}
		if err := checkDuration("defaults.backoff.delay", b.Delay); err != nil {
			return err
		}
		if err := checkDuration("defaults.backoff.maxDelay", b.MaxDelay); err != nil {
			return err
		}
		if b.Multiplier != 0 && b.Multiplier < 1 {
			return fmt.Errorf("defaults.backoff.multiplier must be at least 1")
		}
	}
	return nil
}

func checkDuration(name, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive", name)
	}
	return nil
}

func parseDuration(v string) time.Duration {
	if v == "" {
		return 0
	}
	d, _ := time.ParseDuration(v)
	return d
}

// Resolve turns a validated config into the job list and gate options.
func Resolve(cfg *types.ProjectConfig) ([]types.Job, gate.Options) {
	d := cfg.Defaults
	policy := types.RetryPolicy{
		MaxAttempts:    d.MaxAttempts,
		AttemptTimeout: parseDuration(d.AttemptTimeout),
	}
	if b := d.Backoff; b != nil {
		policy.Backoff = b.Strategy
		policy.BackoffDelay = parseDuration(b.Delay)
		policy.BackoffMultiplier = b.Multiplier
		policy.MaxBackoff = parseDuration(b.MaxDelay)
	}

	opts := gate.Options{
		Policy:             retry.Normalize(policy),
		RunCeiling:         parseDuration(d.RunCeiling),
		KillGrace:          parseDuration(d.KillGrace),
		MaxParallel:        d.MaxParallel,
		SecretShortCircuit: d.SecretShortCircuit,
	}

	jobs := make([]types.Job, 0, len(cfg.Jobs))
	for _, j := range cfg.Jobs {
		cmd := j.Command
		if cmd == "" {
			cmd = d.Command
		}
		jobs = append(jobs, types.Job{
			Name:           j.Name,
			Command:        cmd,
			AttemptTimeout: parseDuration(j.AttemptTimeout),
			MaxAttempts:    j.MaxAttempts,
		})
	}
	return jobs, opts
}
