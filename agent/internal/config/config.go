package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultPollInterval      = 10 * time.Second
	DefaultReloadInterval    = time.Hour
	DefaultJenkinsTimeout    = 10 * time.Second
	DefaultJenkinsRetries    = 10
	DefaultStatusTTL         = 5 * time.Minute
	DefaultBroadcastInterval = 5 * time.Second
	DefaultNATSSubject       = "teamalert.events"
)

// Config is the top-level configuration of the teamalert daemon.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	// PollInterval controls how often every alert is re-evaluated.
	PollInterval time.Duration `yaml:"poll_interval"`

	// ReloadInterval controls how often the whole alert set is rebuilt from
	// this file and the live light and job inventories.
	ReloadInterval time.Duration `yaml:"reload_interval"`

	// CreateMissingLights synthesizes a virtual light for any alert whose
	// light is not found among the real lights.
	CreateMissingLights bool `yaml:"create_missing_lights"`

	// SkipIncompleteAlerts drops an alert entry when any of its watched jobs
	// cannot be resolved. When false the alert watches whatever was found.
	SkipIncompleteAlerts bool `yaml:"skip_incomplete_alerts"`

	// Strict turns every configuration problem into a fatal build error.
	Strict bool `yaml:"strict"`

	Jenkins       []Jenkins      `yaml:"jenkins"`
	Hue           Hue            `yaml:"hue"`
	VirtualLights []VirtualLight `yaml:"virtual_lights"`
	Alerts        []Alert        `yaml:"alerts"`
	Status        Status         `yaml:"status"`
	Notify        Notify         `yaml:"notify"`
	History       History        `yaml:"history"`
}

// Jenkins describes one CI server used as a job source.
type Jenkins struct {
	// URL is the Jenkins root URL, e.g. https://ci.example.com.
	URL string `yaml:"url"`

	Auth AuthConfig `yaml:"auth"`
	TLS  TLSConfig  `yaml:"tls"`

	// Timeout bounds a single HTTP request.
	Timeout time.Duration `yaml:"timeout"`

	// Retries is the maximum number of attempts per request.
	Retries int `yaml:"retries"`

	// IgnoreNeverSucceeded treats a job that has failed but never succeeded
	// as ok. Pointer so an explicit false survives defaulting.
	IgnoreNeverSucceeded *bool `yaml:"ignore_never_succeeded"`
}

// IgnoresNeverSucceeded reports the effective IgnoreNeverSucceeded value.
func (j Jenkins) IgnoresNeverSucceeded() bool {
	if j.IgnoreNeverSucceeded == nil {
		return true
	}
	return *j.IgnoreNeverSucceeded
}

// AuthConfig specifies how requests to a Jenkins server are authenticated.
type AuthConfig struct {
	// Mode is one of: basic | bearer | none.
	Mode string `yaml:"mode"`

	// Username is the literal username for basic auth.
	Username string `yaml:"username"`
	// PasswordEnv names the environment variable holding the password or API token.
	PasswordEnv string `yaml:"password_env"`

	// TokenEnv names the environment variable holding a bearer token.
	TokenEnv string `yaml:"token_env"`
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// Token returns the bearer token resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// TLSConfig holds per-source TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Hue configures the Philips Hue bridge that owns the physical lights.
type Hue struct {
	// Bridge is the bridge host or IP. Empty means no physical lights.
	Bridge string `yaml:"bridge"`

	// UsernameEnv names the environment variable holding the whitelisted
	// bridge username obtained from registration.
	UsernameEnv string `yaml:"username_env"`
}

// Username returns the bridge username resolved from the environment.
func (h Hue) Username() string {
	if h.UsernameEnv == "" {
		return ""
	}
	return os.Getenv(h.UsernameEnv)
}

// VirtualLight declares a synthetic light that is always available.
type VirtualLight struct {
	Name  string `yaml:"name"`
	Debug bool   `yaml:"debug"`
}

// Alert binds a group of jobs to one or more lights.
type Alert struct {
	// Name overrides the derived alert name (the joined job names).
	Name string `yaml:"name"`

	// Light is the primary light driven by this alert.
	Light string `yaml:"light"`

	// Lights lists further light targets driven in addition to Light.
	Lights []string `yaml:"lights"`

	// JobsToWatch holds job or view names.
	JobsToWatch []string `yaml:"jobs_to_watch"`

	// JobsToIgnore holds substrings; a job whose name contains any of them is
	// excluded from aggregation.
	JobsToIgnore []string `yaml:"jobs_to_ignore"`

	// FailTolerance is how many builds the latest failure may lie beyond
	// the latest success before the job counts as failing.
	FailTolerance int `yaml:"fail_tolerance"`
}

// LightNames returns Light followed by Lights, without empty entries.
func (a Alert) LightNames() []string {
	out := make([]string, 0, 1+len(a.Lights))
	if a.Light != "" {
		out = append(out, a.Light)
	}
	for _, l := range a.Lights {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

// Status configures the HTTP status API and websocket stream.
type Status struct {
	// ListenAddr is host:port for the status server. Empty disables it.
	ListenAddr string `yaml:"listen_addr"`

	// TTL is how long an alert status stays listed without an update.
	TTL time.Duration `yaml:"ttl"`

	// BroadcastInterval controls how often websocket clients receive a snapshot.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`

	// Auth guards every status endpoint.
	Auth StatusAuth `yaml:"auth"`
}

// DefaultAPIKeyHeader is the header read when StatusAuth.Header is empty.
const DefaultAPIKeyHeader = "X-API-Key"

// StatusAuth controls client authentication on the status server.
type StatusAuth struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header to read the key from.
	Header string `yaml:"header"`
}

// Key returns the API key resolved from the environment.
func (a StatusAuth) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or DefaultAPIKeyHeader.
func (a StatusAuth) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return DefaultAPIKeyHeader
}

// Notify holds change-notification targets.
type Notify struct {
	Webhooks []WebhookConfig `yaml:"webhooks"`
	NATS     NATSConfig      `yaml:"nats"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// NATSConfig configures publishing of change events to NATS.
type NATSConfig struct {
	// URL of the NATS server. Empty disables publishing.
	URL string `yaml:"url"`

	// Subject is the subject prefix; events go to <subject>.<alert>.
	Subject string `yaml:"subject"`
}

// History configures the SQLite transition journal.
type History struct {
	// Path is the database file. Empty disables the journal.
	Path string `yaml:"path"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML config bytes.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	applyNestedDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		PollInterval:   DefaultPollInterval,
		ReloadInterval: DefaultReloadInterval,
		Status: Status{
			TTL:               DefaultStatusTTL,
			BroadcastInterval: DefaultBroadcastInterval,
		},
		Notify: Notify{
			NATS: NATSConfig{Subject: DefaultNATSSubject},
		},
	}
}

// applyNestedDefaults fills defaults inside list entries, which yaml.v3
// allocates fresh and therefore cannot inherit from defaults().
func applyNestedDefaults(cfg *Config) {
	for i := range cfg.Jenkins {
		j := &cfg.Jenkins[i]
		j.URL = strings.TrimSuffix(j.URL, "/")
		if j.Timeout == 0 {
			j.Timeout = DefaultJenkinsTimeout
		}
		if j.Retries == 0 {
			j.Retries = DefaultJenkinsRetries
		}
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if cfg.ReloadInterval <= 0 {
		return fmt.Errorf("reload_interval must be positive")
	}
	for i, j := range cfg.Jenkins {
		if j.URL == "" {
			return fmt.Errorf("jenkins[%d]: url is required", i)
		}
		if j.Timeout < 0 {
			return fmt.Errorf("jenkins[%d] %q: timeout must not be negative", i, j.URL)
		}
		if j.Retries < 0 {
			return fmt.Errorf("jenkins[%d] %q: retries must not be negative", i, j.URL)
		}
		switch j.Auth.Mode {
		case "basic", "bearer", "none", "":
		default:
			return fmt.Errorf("jenkins[%d] %q: unknown auth mode %q", i, j.URL, j.Auth.Mode)
		}
	}
	seen := make(map[string]bool, len(cfg.VirtualLights))
	for i, vl := range cfg.VirtualLights {
		if vl.Name == "" {
			return fmt.Errorf("virtual_lights[%d]: name is required", i)
		}
		if seen[vl.Name] {
			return fmt.Errorf("virtual_lights[%d]: duplicate name %q", i, vl.Name)
		}
		seen[vl.Name] = true
	}
	for i, a := range cfg.Alerts {
		if len(a.LightNames()) == 0 {
			return fmt.Errorf("alerts[%d]: light is required", i)
		}
		if len(a.JobsToWatch) == 0 {
			return fmt.Errorf("alerts[%d] %q: jobs_to_watch must not be empty", i, a.Light)
		}
		if a.FailTolerance < 0 {
			return fmt.Errorf("alerts[%d] %q: fail_tolerance must not be negative", i, a.Light)
		}
	}
	for i, wh := range cfg.Notify.Webhooks {
		switch wh.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("notify.webhooks[%d]: unknown type %q", i, wh.Type)
		}
	}
	if cfg.Status.ListenAddr != "" {
		if cfg.Status.TTL <= 0 {
			return fmt.Errorf("status.ttl must be positive")
		}
		if cfg.Status.BroadcastInterval <= 0 {
			return fmt.Errorf("status.broadcast_interval must be positive")
		}
		switch cfg.Status.Auth.Mode {
		case "apikey", "none", "":
		default:
			return fmt.Errorf("status.auth.mode %q unknown: want apikey|none", cfg.Status.Auth.Mode)
		}
	}
	return nil
}
