// internal/config/model.go
//
// Typed configuration model for Soundhouse.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from four overlay layers:
//
//   • optional `.env`                              – dotenv values,
//   • `conf/global.yaml`                           – primary static file,
//   • `SOUNDHOUSE_`-prefixed environment overrides – per-deploy tuning,
//   • legacy names (`TURNSTILE_SECRET_KEY`, …)     – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the Vault client *before* unmarshalling, so the model never
// stores Vault URIs, only plain strings.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Contact secrets are deliberately NOT `required`.  A missing Turnstile
//     secret or webhook URL is a runtime rejection, not a boot failure.

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.  TrustedProxies lists the load
// balancers whose X-Forwarded-For is believed; empty means none.
type HTTP struct {
	ListenAddr     string        `koanf:"listen_addr"     validate:"required,hostname_port"`
	ForceHTTPS     bool          `koanf:"force_https"`
	ReadTimeout    time.Duration `koanf:"read_timeout"    validate:"gt=0"`
	WriteTimeout   time.Duration `koanf:"write_timeout"   validate:"gt=0"`
	IdleTimeout    time.Duration `koanf:"idle_timeout"    validate:"gt=0"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	TrustedProxies []string      `koanf:"trusted_proxies" validate:"dive,cidr|ip"`
}

//
// Site section
//

// Site describes where content and templates live on disk.  Relative paths
// are resolved against Paths.Root by the loader.
type Site struct {
	Title     string `koanf:"title"`
	BaseURL   string `koanf:"base_url"   validate:"required,url"`
	Theme     string `koanf:"theme"      validate:"required"`
	ThemesDir string `koanf:"themes_dir" validate:"required"`
	DataDir   string `koanf:"data_dir"   validate:"required"`
	PublicDir string `koanf:"public_dir" validate:"required"`
}

//
// Contact section
//

// RateLimit bounds how often one client may hit the contact API.
type RateLimit struct {
	PerMinute int `koanf:"per_minute" validate:"gte=0"`
	Burst     int `koanf:"burst"      validate:"gte=0"`
}

// Contact configures the submission pipeline.  TurnstileSecret and
// WebhookURL are usually `vault:` references in production.
type Contact struct {
	TurnstileSiteKey   string        `koanf:"turnstile_site_key"`
	TurnstileSecret    string        `koanf:"turnstile_secret"`
	TurnstileVerifyURL string        `koanf:"turnstile_verify_url" validate:"required,url"`
	WebhookURL         string        `koanf:"webhook_url"          validate:"omitempty,url"`
	OutboundTimeout    time.Duration `koanf:"outbound_timeout"     validate:"gt=0"`
	RateLimit          RateLimit     `koanf:"rate_limit"`
}

//
// Redis section
//

// Redis is optional.  When Addr is empty the rate limiter stays in-process.
type Redis struct {
	Addr     string `koanf:"addr"     validate:"omitempty,hostname_port"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"       validate:"gte=0"`
}

//
// Log section
//

// Log controls the zap sinks.
type Log struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
	Dir   string `koanf:"dir"`
}

//
// GeoIP section
//

// GeoIP points at an optional GeoLite2-City database.
type GeoIP struct {
	DBPath string `koanf:"db_path"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // SOUNDHOUSE_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP    HTTP    `koanf:"http"`
	Site    Site    `koanf:"site"`
	Contact Contact `koanf:"contact"`
	Redis   Redis   `koanf:"redis"`
	Log     Log     `koanf:"log"`
	GeoIP   GeoIP   `koanf:"geoip"`
	Paths   Paths   `koanf:"-"`
}
