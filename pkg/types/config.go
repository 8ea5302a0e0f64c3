package types

// ProjectConfig is the top-level testgate.yaml configuration.
type ProjectConfig struct {
	Workflow  string           `yaml:"workflow" json:"workflow"`
	Defaults  DefaultsConfig   `yaml:"defaults" json:"defaults"`
	Signal    *SignalConfig    `yaml:"signal,omitempty" json:"signal,omitempty"`
	Secrets   *SecretsConfig   `yaml:"secrets,omitempty" json:"secrets,omitempty"`
	Store     *StoreConfig     `yaml:"store,omitempty" json:"store,omitempty"`
	Alerts    []AlertConfig    `yaml:"alerts,omitempty" json:"alerts,omitempty"`
	Server    *ServerConfig    `yaml:"server,omitempty" json:"server,omitempty"`
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty" json:"telemetry,omitempty"`
	Jobs      []JobConfig      `yaml:"jobs" json:"jobs"`
}

// DefaultsConfig holds fleet-wide execution policy. Durations are Go
// duration strings ("30m", "90s").
type DefaultsConfig struct {
	Command            string             `yaml:"command,omitempty" json:"command,omitempty"`
	AttemptTimeout     string             `yaml:"attemptTimeout,omitempty" json:"attemptTimeout,omitempty"`
	MaxAttempts        int                `yaml:"maxAttempts,omitempty" json:"maxAttempts,omitempty"`
	RunCeiling         string             `yaml:"runCeiling,omitempty" json:"runCeiling,omitempty"`
	KillGrace          string             `yaml:"killGrace,omitempty" json:"killGrace,omitempty"`
	MaxParallel        int                `yaml:"maxParallel,omitempty" json:"maxParallel,omitempty"`
	Backoff            *BackoffConfig     `yaml:"backoff,omitempty" json:"backoff,omitempty"`
	SecretShortCircuit ShortCircuitPolicy `yaml:"secretShortCircuit" json:"secretShortCircuit"`
}

// BackoffConfig configures the delay between retry attempts.
type BackoffConfig struct {
	Strategy   BackoffStrategy `yaml:"strategy" json:"strategy"`
	Delay      string          `yaml:"delay,omitempty" json:"delay,omitempty"`
	Multiplier float64         `yaml:"multiplier,omitempty" json:"multiplier,omitempty"`
	MaxDelay   string          `yaml:"maxDelay,omitempty" json:"maxDelay,omitempty"`
}

// JobConfig registers one integration-test job.
type JobConfig struct {
	Name           string `yaml:"name" json:"name"`
	Command        string `yaml:"command,omitempty" json:"command,omitempty"`
	AttemptTimeout string `yaml:"attemptTimeout,omitempty" json:"attemptTimeout,omitempty"`
	MaxAttempts    int    `yaml:"maxAttempts,omitempty" json:"maxAttempts,omitempty"`
}

// SignalConfig describes the change-signal artifact.
type SignalConfig struct {
	Path            string `yaml:"path,omitempty" json:"path,omitempty"`
	DependenciesKey string `yaml:"dependenciesKey,omitempty" json:"dependenciesKey,omitempty"`
}

// SecretsConfig selects the secret availability checker.
type SecretsConfig struct {
	Provider  string   `yaml:"provider" json:"provider"` // static, same-repo, secretsmanager
	SecretIDs []string `yaml:"secretIds,omitempty" json:"secretIds,omitempty"`
	Region    string   `yaml:"region,omitempty" json:"region,omitempty"`
}

// StoreConfig selects the run record store.
type StoreConfig struct {
	Provider string          `yaml:"provider" json:"provider"` // memory, dynamodb
	DynamoDB *DynamoDBConfig `yaml:"dynamodb,omitempty" json:"dynamodb,omitempty"`
}

// DynamoDBConfig holds DynamoDB store settings.
type DynamoDBConfig struct {
	TableName    string `yaml:"tableName" json:"tableName"`
	Region       string `yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint     string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	RetentionTTL string `yaml:"retentionTTL,omitempty" json:"retentionTTL,omitempty"`
	CreateTable  bool   `yaml:"createTable,omitempty" json:"createTable,omitempty"`
}

// AlertConfig defines an alert sink.
type AlertConfig struct {
	Type         AlertType `yaml:"type" json:"type"`
	URL          string    `yaml:"url,omitempty" json:"url,omitempty"`
	Path         string    `yaml:"path,omitempty" json:"path,omitempty"`
	EventBusName string    `yaml:"eventBusName,omitempty" json:"eventBusName,omitempty"`
	Source       string    `yaml:"source,omitempty" json:"source,omitempty"`
	Region       string    `yaml:"region,omitempty" json:"region,omitempty"`
}

// ServerConfig configures the HTTP API used by serve mode.
type ServerConfig struct {
	Addr           string `yaml:"addr" json:"addr"`
	APIKey         string `yaml:"apiKey,omitempty" json:"apiKey,omitempty"`
	MaxRequestBody int64  `yaml:"maxRequestBody,omitempty" json:"maxRequestBody,omitempty"`
}

// TelemetryConfig enables OTLP export of traces and metrics.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	Endpoint    string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Insecure    bool   `yaml:"insecure,omitempty" json:"insecure,omitempty"`
	ServiceName string `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
}
