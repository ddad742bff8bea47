package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Isolation strategy names. Schema isolation gives every deployment its own
// physical Postgres schema; metadata isolation keeps all tenants in one
// schema and filters per record on tenant_id/is_shared.
const (
	IsolationSchema   = "schema"
	IsolationMetadata = "metadata"
)

// Shared-merge strategy names. "concat" runs one bounded search per scope
// and re-sorts the concatenation; "single-query" issues one OR-predicate
// top-k query.
const (
	MergeConcat      = "concat"
	MergeSingleQuery = "single-query"
)

// Config holds all configuration for querylens-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values. Secrets (passwords, API
// keys) must only come from environment variables.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3560"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// DatabaseType names the source-database family training data and
	// queries are scoped to by default (e.g. "postgres", "bigquery").
	DatabaseType string `yaml:"database_type" env:"DATABASE_TYPE" env-default:"postgres"`

	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Tenancy   TenancyConfig   `yaml:"tenancy"`
}

// DatabaseConfig holds PostgreSQL configuration for the embedding store.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"querylens"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"querylens"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`

	// Region is the Postgres schema holding the embedding tables. Every
	// connection pins its search_path to this schema at checkout, so the
	// target region is an explicit construction-time choice rather than
	// process-global state.
	Region string `yaml:"region" env:"PGREGION" env-default:"public"`
}

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	BaseURL string `yaml:"base_url" env:"EMBEDDING_BASE_URL" env-default:"https://api.openai.com/v1"`
	Model   string `yaml:"model" env:"EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
	APIKey  string `yaml:"-" env:"EMBEDDING_API_KEY"` // Secret - not in YAML

	// Dimension is the deployment-wide vector dimension. Writes and queries
	// with any other dimension are rejected.
	Dimension int `yaml:"dimension" env:"EMBEDDING_DIMENSION" env-default:"1536"`
}

// LLMConfig holds the SQL-generation provider settings.
type LLMConfig struct {
	// Provider selects the generation backend: "openai" (any
	// OpenAI-compatible endpoint) or "anthropic".
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	BaseURL  string `yaml:"base_url" env:"LLM_BASE_URL" env-default:"https://api.openai.com/v1"`
	Model    string `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o"`
	APIKey   string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
}

// TenancyConfig holds multi-tenant isolation settings.
type TenancyConfig struct {
	// Enabled turns on multi-tenant mode. When off, searches run
	// unrestricted ("open" mode) and writes carry no tenant metadata.
	// Open mode is this explicit configuration choice, never a fallback
	// for a request that merely forgot its tenant.
	Enabled bool `yaml:"enabled" env:"MULTI_TENANT" env-default:"false"`

	// DefaultTenant is used when a request carries no tenant of its own.
	// Mandatory when Enabled is true.
	DefaultTenant string `yaml:"default_tenant" env:"TENANT_ID" env-default:""`

	// AllowedTenantsStr is a comma-separated registry of known tenants.
	// Empty means any tenant is accepted.
	AllowedTenantsStr string `yaml:"allowed_tenants" env:"ALLOWED_TENANTS" env-default:""`

	// SharedKnowledge controls whether searches merge records marked
	// is_shared=true into tenant results by default.
	SharedKnowledge bool `yaml:"shared_knowledge" env:"SHARED_KNOWLEDGE" env-default:"true"`

	// IncludeLegacy additionally matches records that predate multi-tenant
	// adoption and carry no tenant_id at all.
	IncludeLegacy bool `yaml:"include_legacy" env:"INCLUDE_LEGACY_DATA" env-default:"false"`

	// StrictIsolation blocks requests whose generated SQL references
	// another tenant's tables. When false, violations are logged and the
	// response confidence is capped instead.
	StrictIsolation bool `yaml:"strict_isolation" env:"STRICT_TENANT_ISOLATION" env-default:"false"`

	// Isolation selects the storage isolation strategy: "metadata"
	// (per-record tenant filtering) or "schema" (region per deployment).
	Isolation string `yaml:"isolation" env:"TENANT_ISOLATION" env-default:"metadata"`

	// MergeStrategy selects how tenant-private and shared results are
	// combined: "concat" or "single-query".
	MergeStrategy string `yaml:"merge_strategy" env:"SHARED_MERGE_STRATEGY" env-default:"concat"`
}

// AllowedTenants returns the parsed tenant registry. Nil means no
// restriction.
func (t *TenancyConfig) AllowedTenants() []string {
	if t.AllowedTenantsStr == "" {
		return nil
	}
	var tenants []string
	for _, s := range strings.Split(t.AllowedTenantsStr, ",") {
		if s = strings.TrimSpace(s); s != "" {
			tenants = append(tenants, s)
		}
	}
	return tenants
}

// IsTenantAllowed reports whether the tenant is in the registry (or the
// registry is unrestricted).
func (t *TenancyConfig) IsTenantAllowed(tenant string) bool {
	allowed := t.AllowedTenants()
	if allowed == nil {
		return true
	}
	for _, a := range allowed {
		if a == tenant {
			return true
		}
	}
	return false
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints that cleanenv cannot express.
func (c *Config) Validate() error {
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}

	switch c.Tenancy.Isolation {
	case IsolationSchema, IsolationMetadata:
	default:
		return fmt.Errorf("unknown isolation strategy %q (want %q or %q)",
			c.Tenancy.Isolation, IsolationSchema, IsolationMetadata)
	}

	switch c.Tenancy.MergeStrategy {
	case MergeConcat, MergeSingleQuery:
	default:
		return fmt.Errorf("unknown merge strategy %q (want %q or %q)",
			c.Tenancy.MergeStrategy, MergeConcat, MergeSingleQuery)
	}

	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown llm provider %q (want \"openai\" or \"anthropic\")", c.LLM.Provider)
	}

	if c.Tenancy.Enabled {
		if c.Tenancy.DefaultTenant == "" {
			return fmt.Errorf("TENANT_ID is mandatory when multi-tenant mode is enabled")
		}
		if !c.Tenancy.IsTenantAllowed(c.Tenancy.DefaultTenant) {
			return fmt.Errorf("default tenant %q is not in the allowed tenants list", c.Tenancy.DefaultTenant)
		}
	}

	return nil
}
