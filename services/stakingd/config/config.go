package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"stakeledger/crypto"
	"stakeledger/native/staking"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Seconds returns the duration truncated to whole seconds.
func (d Duration) Seconds() uint64 {
	if d.Duration <= 0 {
		return 0
	}
	return uint64(d.Duration / time.Second)
}

// Config captures runtime configuration for stakingd.
type Config struct {
	ListenAddress string           `yaml:"listen"`
	Store         StoreConfig      `yaml:"store"`
	Journal       JournalConfig    `yaml:"journal"`
	Engine        EngineConfig     `yaml:"engine"`
	Auth          AuthConfig       `yaml:"auth"`
	RateLimits    RateLimitConfig  `yaml:"rate_limits"`
	Ledger        LedgerConfig     `yaml:"ledger"`
	Reconciler    ReconcilerConfig `yaml:"reconciler"`
	Export        ExportConfig     `yaml:"export"`
	Logging       LoggingConfig    `yaml:"logging"`
	Stream        StreamConfig     `yaml:"stream"`
}

// StoreConfig selects the ledger persistence backend.
type StoreConfig struct {
	// Backend is one of memory, leveldb or bolt.
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// JournalConfig points at the relational database holding the event journal and
// idempotency records.
type JournalConfig struct {
	// Driver is sqlite or postgres.
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// WeightStep is a single weight table entry.
type WeightStep struct {
	Threshold     Duration `yaml:"threshold"`
	MultiplierBps uint64   `yaml:"multiplier_bps"`
}

// EngineConfig mirrors staking.Params in operator-friendly units.
type EngineConfig struct {
	Operator          string            `yaml:"operator"`
	TokenLedger       string            `yaml:"token_ledger"`
	EligibilityFloor  Duration          `yaml:"eligibility_floor"`
	DefaultLockup     Duration          `yaml:"default_lockup"`
	MinLockup         Duration          `yaml:"min_lockup"`
	MaxLockup         Duration          `yaml:"max_lockup"`
	Weights           []WeightStep      `yaml:"weights"`
	DefaultWeightBps  uint64            `yaml:"default_weight_bps"`
	TierBoosts        map[string]uint64 `yaml:"tier_boosts"`
	SettlementHistory uint64            `yaml:"settlement_history"`
	RoundBatch        int               `yaml:"round_batch"`
}

// AuthConfig configures JWT verification for account and admin routes.
type AuthConfig struct {
	HMACSecret     string   `yaml:"hmac_secret"`
	HMACSecretFile string   `yaml:"hmac_secret_file"`
	HMACSecretEnv  string   `yaml:"hmac_secret_env"`
	Issuer         string   `yaml:"issuer"`
	Audience       string   `yaml:"audience"`
	ScopeClaim     string   `yaml:"scope_claim"`
	OperatorScope  string   `yaml:"operator_scope"`
	ClockSkew      Duration `yaml:"clock_skew"`
}

// RateLimit bounds requests per client.
type RateLimit struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// RateLimitConfig groups limits per route family.
type RateLimitConfig struct {
	Public  RateLimit `yaml:"public"`
	Account RateLimit `yaml:"account"`
	Admin   RateLimit `yaml:"admin"`
}

// LedgerConfig configures the outbound token ledger client.
type LedgerConfig struct {
	Endpoint      string   `yaml:"endpoint"`
	Timeout       Duration `yaml:"timeout"`
	SignerKey     string   `yaml:"signer_key"`
	SignerKeyFile string   `yaml:"signer_key_file"`
	SignerKeyEnv  string   `yaml:"signer_key_env"`
	Memo          string   `yaml:"memo"`
}

// ReconcilerConfig controls the stale transfer sweep.
type ReconcilerConfig struct {
	Interval   Duration `yaml:"interval"`
	StaleAfter Duration `yaml:"stale_after"`
	Batch      int      `yaml:"batch"`
	Disabled   bool     `yaml:"disabled"`
}

// ExportConfig configures audit exports.
type ExportConfig struct {
	Directory string `yaml:"directory"`
}

// LoggingConfig configures structured logging output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// StreamConfig tunes the websocket event stream.
type StreamConfig struct {
	Buffer int `yaml:"buffer"`
}

// Load reads configuration from the supplied path.
func Load(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.finalise(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) finalise() error {
	applyDefaults(c)
	if err := c.Auth.normalise(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Ledger.normalise(); err != nil {
		return fmt.Errorf("ledger signer: %w", err)
	}
	return validate(*c)
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7094"
	}
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "leveldb"
	}
	if cfg.Store.Path == "" && cfg.Store.Backend != "memory" {
		cfg.Store.Path = "stakeledger-data/ledger"
	}
	cfg.Journal.Driver = strings.ToLower(strings.TrimSpace(cfg.Journal.Driver))
	if cfg.Journal.Driver == "" {
		cfg.Journal.Driver = "sqlite"
	}
	if cfg.Journal.DSN == "" && cfg.Journal.Driver == "sqlite" {
		cfg.Journal.DSN = "file:stakeledger-data/journal.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	defaults := staking.DefaultParams()
	if cfg.Engine.EligibilityFloor.Duration == 0 {
		cfg.Engine.EligibilityFloor.Duration = time.Duration(defaults.EligibilityFloor) * time.Second
	}
	if cfg.Engine.DefaultLockup.Duration == 0 {
		cfg.Engine.DefaultLockup.Duration = time.Duration(defaults.DefaultLockup) * time.Second
	}
	if cfg.Engine.MinLockup.Duration == 0 {
		cfg.Engine.MinLockup.Duration = time.Duration(defaults.MinLockup) * time.Second
	}
	if cfg.Engine.MaxLockup.Duration == 0 {
		cfg.Engine.MaxLockup.Duration = time.Duration(defaults.MaxLockup) * time.Second
	}
	if len(cfg.Engine.Weights) == 0 {
		for _, step := range defaults.Weights.Steps() {
			cfg.Engine.Weights = append(cfg.Engine.Weights, WeightStep{
				Threshold:     Duration{time.Duration(step.Threshold) * time.Second},
				MultiplierBps: step.MultiplierBps,
			})
		}
	}
	if cfg.Engine.DefaultWeightBps == 0 {
		cfg.Engine.DefaultWeightBps = defaults.Weights.DefaultBps()
	}
	if cfg.Engine.SettlementHistory == 0 {
		cfg.Engine.SettlementHistory = defaults.SettlementHistory
	}
	if cfg.Engine.RoundBatch <= 0 {
		cfg.Engine.RoundBatch = staking.DefaultRoundBatch
	}
	if cfg.Auth.ScopeClaim == "" {
		cfg.Auth.ScopeClaim = "scope"
	}
	if cfg.Auth.OperatorScope == "" {
		cfg.Auth.OperatorScope = "operator"
	}
	if cfg.Auth.ClockSkew.Duration == 0 {
		cfg.Auth.ClockSkew.Duration = 2 * time.Minute
	}
	if cfg.RateLimits.Public.RequestsPerMinute == 0 {
		cfg.RateLimits.Public = RateLimit{RequestsPerMinute: 600, Burst: 60}
	}
	if cfg.RateLimits.Account.RequestsPerMinute == 0 {
		cfg.RateLimits.Account = RateLimit{RequestsPerMinute: 120, Burst: 20}
	}
	if cfg.RateLimits.Admin.RequestsPerMinute == 0 {
		cfg.RateLimits.Admin = RateLimit{RequestsPerMinute: 60, Burst: 10}
	}
	if cfg.Ledger.Timeout.Duration == 0 {
		cfg.Ledger.Timeout.Duration = 10 * time.Second
	}
	if cfg.Ledger.Memo == "" {
		cfg.Ledger.Memo = "stakeledger"
	}
	if cfg.Reconciler.Interval.Duration == 0 {
		cfg.Reconciler.Interval.Duration = time.Minute
	}
	if cfg.Reconciler.StaleAfter.Duration == 0 {
		cfg.Reconciler.StaleAfter.Duration = 10 * time.Minute
	}
	if cfg.Reconciler.Batch <= 0 {
		cfg.Reconciler.Batch = 100
	}
	if cfg.Export.Directory == "" {
		cfg.Export.Directory = "stakeledger-data/exports"
	}
	if cfg.Stream.Buffer <= 0 {
		cfg.Stream.Buffer = 64
	}
}

func validate(cfg Config) error {
	switch cfg.Store.Backend {
	case "memory", "leveldb", "bolt":
	default:
		return fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
	switch cfg.Journal.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported journal driver %q", cfg.Journal.Driver)
	}
	if strings.TrimSpace(cfg.Journal.DSN) == "" {
		return fmt.Errorf("journal dsn must be configured")
	}
	if strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		return fmt.Errorf("auth hmac_secret must be configured")
	}
	if strings.TrimSpace(cfg.Ledger.Endpoint) == "" {
		return fmt.Errorf("ledger endpoint must be configured")
	}
	if _, err := cfg.Engine.Params(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}

// Params converts the engine section into validated staking parameters.
func (e EngineConfig) Params() (staking.Params, error) {
	params := staking.DefaultParams()
	operator, err := crypto.ParseAddress(e.Operator)
	if err != nil {
		return params, fmt.Errorf("operator: %w", err)
	}
	ledger, err := crypto.ParseAddress(e.TokenLedger)
	if err != nil {
		return params, fmt.Errorf("token_ledger: %w", err)
	}
	steps := make([]staking.WeightStep, 0, len(e.Weights))
	for _, step := range e.Weights {
		steps = append(steps, staking.WeightStep{Threshold: step.Threshold.Seconds(), MultiplierBps: step.MultiplierBps})
	}
	table, err := staking.NewWeightTable(steps, e.DefaultWeightBps)
	if err != nil {
		return params, fmt.Errorf("weights: %w", err)
	}
	params.Operator = operator
	params.TokenLedger = ledger
	params.EligibilityFloor = e.EligibilityFloor.Seconds()
	params.DefaultLockup = e.DefaultLockup.Seconds()
	params.MinLockup = e.MinLockup.Seconds()
	params.MaxLockup = e.MaxLockup.Seconds()
	params.Weights = table
	params.SettlementHistory = e.SettlementHistory
	for name, boost := range e.TierBoosts {
		tier, err := staking.ParseTier(name)
		if err != nil {
			return params, err
		}
		params.TierBoosts[tier] = boost
	}
	if err := params.Validate(); err != nil {
		return params, err
	}
	return params, nil
}

func (a *AuthConfig) normalise() error {
	if a == nil {
		return fmt.Errorf("auth configuration missing")
	}
	secret, err := resolveSecret(a.HMACSecret, a.HMACSecretEnv, a.HMACSecretFile)
	if err != nil {
		return err
	}
	a.HMACSecret = secret
	a.Issuer = strings.TrimSpace(a.Issuer)
	a.Audience = strings.TrimSpace(a.Audience)
	return nil
}

func (l *LedgerConfig) normalise() error {
	if l == nil {
		return fmt.Errorf("ledger configuration missing")
	}
	l.Endpoint = strings.TrimRight(strings.TrimSpace(l.Endpoint), "/")
	key, err := resolveSecret(l.SignerKey, l.SignerKeyEnv, l.SignerKeyFile)
	if err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("signer_key is required")
	}
	l.SignerKey = strings.TrimPrefix(key, "0x")
	return nil
}

// resolveSecret prefers the inline value, then the environment variable, then
// the file.
func resolveSecret(value, env, path string) (string, error) {
	value = strings.TrimSpace(value)
	if value != "" {
		return value, nil
	}
	env = strings.TrimSpace(env)
	path = strings.TrimSpace(path)
	switch {
	case env != "":
		resolved := strings.TrimSpace(os.Getenv(env))
		if resolved == "" {
			return "", fmt.Errorf("environment variable %s is empty", env)
		}
		return resolved, nil
	case path != "":
		contents, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return strings.TrimSpace(string(contents)), nil
	}
	return "", nil
}
